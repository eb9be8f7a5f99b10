package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no product matches.
	ErrNotFound = errors.New("product not found")

	// ErrDuplicate is returned when a barcode or sku is already taken.
	ErrDuplicate = errors.New("product barcode or sku already exists")
)

// Repository provides access to product storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new product repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new product. A taken barcode or sku yields ErrDuplicate.
func (r *Repository) Create(ctx context.Context, product *Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return errors.New("product name is required")
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// FindByBarcode retrieves the product with exactly this barcode.
func (r *Repository) FindByBarcode(ctx context.Context, barcode string) (*Product, error) {
	return r.findOne(ctx, "barcode = ?", barcode)
}

// FindBySKU retrieves the product with exactly this sku.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (*Product, error) {
	return r.findOne(ctx, "sku = ?", sku)
}

// FindAll retrieves all products ordered by id.
func (r *Repository) FindAll(ctx context.Context) ([]*Product, error) {
	var products []*Product
	if err := r.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	return products, nil
}

// Count returns the number of products.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

func (r *Repository) findOne(ctx context.Context, query string, value string) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).Where(query, value).Take(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &product, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
