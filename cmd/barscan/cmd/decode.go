package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
)

// DecodedFile is the outcome for one input file.
type DecodedFile struct {
	File    string         `json:"file"`
	OK      bool           `json:"ok"`
	Results []DecodedEntry `json:"results"`
	Error   string         `json:"error,omitempty"`
	Details string         `json:"details,omitempty"`
}

// DecodedEntry is one decoded code, with its catalog match when --lookup is set.
type DecodedEntry struct {
	Type    *string          `json:"type"`
	Text    *string          `json:"text"`
	Product *catalog.Product `json:"product,omitempty"`
}

var decodeCmd = &cobra.Command{
	Use:   "decode FILE...",
	Short: "Decode barcodes in image files",
	Long: `Send each image to the recognition provider and print the decoded codes.

Files are decoded concurrently. With --lookup every decoded code is also
resolved against the catalog.

Examples:
  barscan decode frame.jpg
  barscan decode --concurrency 8 --format text shots/*.png
  barscan decode --lookup shelf.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		lookup, _ := cmd.Flags().GetBool("lookup")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		format, _ := cmd.Flags().GetString("format")

		if format != "json" && format != "text" {
			return fmt.Errorf("invalid format: %s (must be json or text)", format)
		}

		decoder := barcode.NewClient(cfg.ToBarcodeConfig())
		if !decoder.Configured() {
			return barcode.ErrMissingAPIKey
		}

		var resolver *catalog.Resolver
		if lookup {
			store, err := openCatalog(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			resolver = catalog.NewResolver(store)
		}

		results, err := decodeFiles(cmd.Context(), decoder, resolver, args, concurrency)
		if err != nil {
			return err
		}

		if format == "text" {
			printDecodedText(cmd, results)
		} else if err := writeJSON(cmd, results); err != nil {
			return err
		}

		for _, r := range results {
			if !r.OK {
				return fmt.Errorf("%d of %d files failed", countFailed(results), len(results))
			}
		}
		return nil
	},
}

type codeDecoder interface {
	Decode(ctx context.Context, img barcode.Image) ([]barcode.Code, error)
}

// decodeFiles decodes files with at most limit calls in flight. Per-file
// failures are reported in the result; only a failed lookup aborts the run.
func decodeFiles(ctx context.Context, decoder codeDecoder, resolver *catalog.Resolver, files []string, limit int) ([]DecodedFile, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]DecodedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, file := range files {
		g.Go(func() error {
			out := DecodedFile{File: file, Results: []DecodedEntry{}}
			defer func() { results[i] = out }()

			img, err := readImageFile(file)
			if err != nil {
				out.Error = err.Error()
				return nil
			}

			codes, err := decoder.Decode(gctx, img)
			if err != nil {
				out.Error = err.Error()
				if ue, ok := asUpstream(err); ok {
					out.Details = ue.Body
				}
				slog.Debug("Decode failed", "file", file, "error", err)
				return nil
			}

			out.OK = true
			for _, c := range codes {
				entry := DecodedEntry{Type: c.Type, Text: c.Text}
				if resolver != nil && strings.TrimSpace(c.TextOrEmpty()) != "" {
					res, err := resolver.Resolve(gctx, c.TextOrEmpty())
					if err != nil {
						return fmt.Errorf("lookup %q from %s: %w", c.TextOrEmpty(), file, err)
					}
					entry.Product = res.Product
				}
				out.Results = append(out.Results, entry)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func readImageFile(path string) (barcode.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return barcode.Image{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return barcode.Image{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
	}, nil
}

func asUpstream(err error) (*barcode.UpstreamError, bool) {
	var ue *barcode.UpstreamError
	ok := errors.As(err, &ue)
	return ue, ok
}

func printDecodedText(cmd *cobra.Command, results []DecodedFile) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		if !r.OK {
			_, _ = fmt.Fprintf(out, "%s: error: %s\n", r.File, r.Error)
			continue
		}
		if len(r.Results) == 0 {
			_, _ = fmt.Fprintf(out, "%s: no codes found\n", r.File)
			continue
		}
		for _, e := range r.Results {
			line := fmt.Sprintf("%s: %s %s", r.File, deref(e.Type, "?"), deref(e.Text, ""))
			if e.Product != nil {
				line += fmt.Sprintf(" -> %s (%.2f)", e.Product.Name, e.Product.Price)
			}
			_, _ = fmt.Fprintln(out, line)
		}
	}
}

func countFailed(results []DecodedFile) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().Bool("lookup", false, "resolve each decoded code against the catalog")
	decodeCmd.Flags().IntP("concurrency", "c", 4, "maximum concurrent provider calls")
	decodeCmd.Flags().StringP("format", "f", "json", "output format: json or text")
}
