package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrEmptyCode is returned when the code is blank after trimming.
var ErrEmptyCode = errors.New("code is required")

// Resolver matches decoded codes to catalog products.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a resolver reading from store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{db: store.DB()}
}

// Resolve looks code up by barcode, then by sku. No match is a Result with
// Found false and a nil error. The lookup runs on a connection acquired for
// this call and released before it returns.
func (r *Resolver) Resolve(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, ErrEmptyCode
	}

	var result Result
	err := r.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		repo := NewRepository(conn)

		product, err := repo.FindByBarcode(ctx, code)
		switch {
		case err == nil:
			result = Result{Found: true, Product: product, MatchedOn: MatchBarcode}
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		product, err = repo.FindBySKU(ctx, code)
		switch {
		case err == nil:
			result = Result{Found: true, Product: product, MatchedOn: MatchSKU}
			return nil
		case errors.Is(err, ErrNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
