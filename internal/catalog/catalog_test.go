package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/catalog"
	"github.com/MeKo-Tech/barscan/internal/testutil"
)

func openStore(t *testing.T, seed bool) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(catalog.Options{Path: testutil.TempDBPath(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Init(context.Background(), seed))
	return store
}

func TestInit_SeedsDemoProductOnce(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, true)
	repo := catalog.NewRepository(store.DB())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// second init is a no-op
	require.NoError(t, store.Init(ctx, true))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	p, err := repo.FindBySKU(ctx, "SKU-001")
	require.NoError(t, err)
	assert.Equal(t, "Sample Item", p.Name)
	assert.InDelta(t, 199.0, p.Price, 0.0001)
	require.NotNil(t, p.Barcode)
	assert.Equal(t, "8901234567890", *p.Barcode)
}

func TestInit_NoSeedOnNonEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, false)
	repo := catalog.NewRepository(store.DB())

	require.NoError(t, repo.Create(ctx, &catalog.Product{
		Name:    "Existing",
		Barcode: catalog.StringPtr("111"),
	}))
	require.NoError(t, store.Init(ctx, true))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInit_WithoutSeed(t *testing.T) {
	store := openStore(t, false)

	count, err := catalog.NewRepository(store.DB()).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, true)
	resolver := catalog.NewResolver(store)

	tests := []struct {
		name      string
		code      string
		found     bool
		matchedOn string
	}{
		{name: "by barcode", code: "8901234567890", found: true, matchedOn: catalog.MatchBarcode},
		{name: "by sku", code: "SKU-001", found: true, matchedOn: catalog.MatchSKU},
		{name: "surrounding whitespace", code: "  SKU-001\n", found: true, matchedOn: catalog.MatchSKU},
		{name: "unknown", code: "0000000000000"},
		{name: "case sensitive", code: "sku-001"},
		{name: "prefix only", code: "890123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := resolver.Resolve(ctx, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.found, result.Found)
			if !tt.found {
				assert.Nil(t, result.Product)
				return
			}
			require.NotNil(t, result.Product)
			assert.Equal(t, "Sample Item", result.Product.Name)
			assert.Equal(t, tt.matchedOn, result.MatchedOn)
		})
	}
}

func TestResolve_BlankCode(t *testing.T) {
	resolver := catalog.NewResolver(openStore(t, true))

	for _, code := range []string{"", "   ", "\t\n"} {
		_, err := resolver.Resolve(context.Background(), code)
		assert.ErrorIs(t, err, catalog.ErrEmptyCode, "code %q", code)
	}
}

func TestResolve_BarcodeTakesPrecedenceOverSKU(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, false)
	repo := catalog.NewRepository(store.DB())

	byBarcode := &catalog.Product{Name: "A", Barcode: catalog.StringPtr("X-42")}
	bySKU := &catalog.Product{Name: "B", SKU: catalog.StringPtr("X-42")}
	require.NoError(t, repo.Create(ctx, bySKU))
	require.NoError(t, repo.Create(ctx, byBarcode))

	result, err := catalog.NewResolver(store).Resolve(ctx, "X-42")
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, byBarcode.ID, result.Product.ID)
	assert.Equal(t, catalog.MatchBarcode, result.MatchedOn)
}

func TestResolve_CancelledContext(t *testing.T) {
	resolver := catalog.NewResolver(openStore(t, true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resolver.Resolve(ctx, "SKU-001")
	assert.Error(t, err)
}

func TestResolve_ClosedStore(t *testing.T) {
	store, err := catalog.Open(catalog.Options{Path: testutil.TempDBPath(t)})
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background(), true))
	require.NoError(t, store.Close())

	_, err = catalog.NewResolver(store).Resolve(context.Background(), "SKU-001")
	assert.Error(t, err)
}

func TestRepository_CreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, true)
	repo := catalog.NewRepository(store.DB())

	err := repo.Create(ctx, &catalog.Product{Name: "Dup barcode", Barcode: catalog.StringPtr("8901234567890")})
	assert.ErrorIs(t, err, catalog.ErrDuplicate)

	err = repo.Create(ctx, &catalog.Product{Name: "Dup sku", SKU: catalog.StringPtr("SKU-001")})
	assert.ErrorIs(t, err, catalog.ErrDuplicate)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_NullCodesAreNotDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewRepository(openStore(t, false).DB())

	require.NoError(t, repo.Create(ctx, &catalog.Product{Name: "one"}))
	require.NoError(t, repo.Create(ctx, &catalog.Product{Name: "two"}))

	products, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "one", products[0].Name)
	assert.Nil(t, products[0].Barcode)
}

func TestRepository_CreateRequiresName(t *testing.T) {
	repo := catalog.NewRepository(openStore(t, false).DB())

	err := repo.Create(context.Background(), &catalog.Product{Name: "  "})
	assert.Error(t, err)
}

func TestRepository_FindNotFound(t *testing.T) {
	repo := catalog.NewRepository(openStore(t, false).DB())

	_, err := repo.FindByBarcode(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = repo.FindBySKU(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
