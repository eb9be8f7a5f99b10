package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/barscan/internal/catalog"
)

// LookupResult is printed by the lookup command.
type LookupResult struct {
	Code      string           `json:"code"`
	Found     bool             `json:"found"`
	MatchedOn string           `json:"matched_on,omitempty"`
	Product   *catalog.Product `json:"product,omitempty"`
}

var lookupCmd = &cobra.Command{
	Use:   "lookup CODE",
	Short: "Look a code up in the product catalog",
	Long: `Resolve a code against the catalog. The barcode column is searched
first and the SKU column second.

Examples:
  barscan lookup 8901234567890
  barscan lookup SKU-001 --db /data/products.db`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		store, err := openCatalog(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		res, err := catalog.NewResolver(store).Resolve(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}

		return writeJSON(cmd, LookupResult{
			Code:      args[0],
			Found:     res.Found,
			MatchedOn: res.MatchedOn,
			Product:   res.Product,
		})
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
