// Package mongostore persists users, products and orders in MongoDB.
//
// Collections are users, products and orders. Every _id is a UUID
// string and money is stored as Decimal128. A unique index on
// users.email backs storefront.ErrUserExists.
package mongostore
