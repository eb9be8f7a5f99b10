package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/barscan/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the product catalog",
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog schema",
	Long: `Create the products table if it does not exist. With --seed-demo an
empty catalog receives the demo product. Running it again is harmless.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		seed, _ := cmd.Flags().GetBool("seed-demo")

		store, err := openCatalog(cmd.Context(), cfg, seed)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		count, err := catalog.NewRepository(store.DB()).Count(cmd.Context())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "catalog %s ready (%d products)\n", store.Path(), count)
		return nil
	},
}

var catalogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product",
	Long: `Insert a product. Barcode and SKU are optional but each must be unique
across the catalog.

Examples:
  barscan catalog add --name "Green Tea" --barcode 4006381333931 --price 3.49
  barscan catalog add --name "Loose item" --sku BULK-7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		code, _ := cmd.Flags().GetString("barcode")
		sku, _ := cmd.Flags().GetString("sku")
		price, _ := cmd.Flags().GetFloat64("price")

		if strings.TrimSpace(name) == "" {
			return errors.New("--name is required")
		}
		if price < 0 {
			return fmt.Errorf("invalid price: %v (must not be negative)", price)
		}

		store, err := openCatalog(cmd.Context(), GetConfig(), false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		product := &catalog.Product{
			Name:    strings.TrimSpace(name),
			Barcode: catalog.StringPtr(strings.TrimSpace(code)),
			SKU:     catalog.StringPtr(strings.TrimSpace(sku)),
			Price:   price,
		}
		if err := catalog.NewRepository(store.DB()).Create(cmd.Context(), product); err != nil {
			if errors.Is(err, catalog.ErrDuplicate) {
				return fmt.Errorf("barcode or SKU already in catalog: %w", catalog.ErrDuplicate)
			}
			return err
		}

		return writeJSON(cmd, product)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogInitCmd, catalogAddCmd)

	catalogInitCmd.Flags().Bool("seed-demo", true, "seed the demo product into an empty catalog")

	catalogAddCmd.Flags().String("name", "", "product name (required)")
	catalogAddCmd.Flags().String("barcode", "", "product barcode")
	catalogAddCmd.Flags().String("sku", "", "product SKU")
	catalogAddCmd.Flags().Float64("price", 0, "product price")
}
