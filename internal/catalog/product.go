// Package catalog stores products and resolves decoded codes against them.
//
// Lookups match a code exactly against the barcode column first and the sku
// column second. Both columns are nullable and unique, so at most one row
// matches per column; when a code is one product's barcode and another's
// sku, the barcode match wins.
package catalog

// Product is a catalog entry.
type Product struct {
	ID      int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string  `gorm:"size:200;not null" json:"name"`
	Barcode *string `gorm:"size:64;uniqueIndex" json:"barcode"`
	SKU     *string `gorm:"column:sku;size:64;uniqueIndex" json:"sku"`
	Price   float64 `gorm:"not null;default:0" json:"price"`
}

// TableName returns the table name for Product model.
func (Product) TableName() string {
	return "products"
}

// Result is the outcome of a single resolve call.
type Result struct {
	Found   bool
	Product *Product
	// MatchedOn is "barcode" or "sku" when Found.
	MatchedOn string
}

const (
	MatchBarcode = "barcode"
	MatchSKU     = "sku"
)

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
