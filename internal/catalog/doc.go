// Package catalog owns products: validation, HTML sanitising of
// descriptions and the repository contract the document store implements.
package catalog
