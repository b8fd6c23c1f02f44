// Package pms holds the product-management catalog model: brands, products,
// product categories, attribute categories and attributes, together with
// their list filters and batch operation names.
package pms

import "github.com/shopspring/decimal"

func init() {
	// The remote API expects prices as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}
