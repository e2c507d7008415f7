// Package orders places and tracks customer orders. Unit prices are
// copied from the catalog when an order is placed, so later price
// changes do not alter existing orders.
package orders
