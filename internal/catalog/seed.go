package catalog

import (
	"fmt"

	"gorm.io/gorm"
)

// DemoProduct is the record seeded into an empty catalog.
func DemoProduct() Product {
	return Product{
		Name:    "Sample Item",
		Barcode: StringPtr("8901234567890"),
		SKU:     StringPtr("SKU-001"),
		Price:   199.0,
	}
}

// seedDemo inserts the demo product only when the products table is empty.
// It reports whether a row was created.
func seedDemo(db *gorm.DB) (bool, error) {
	created := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count products: %w", err)
		}
		if count > 0 {
			return nil
		}

		demo := DemoProduct()
		if err := tx.Create(&demo).Error; err != nil {
			return fmt.Errorf("failed to seed demo product: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}
