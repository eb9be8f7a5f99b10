package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/catalog"
	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/testutil"
)

// isolate keeps config discovery away from the developer's machine.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CLOUDMERSIVE_API_KEY", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("PORT", "")
}

// resetFlags puts every flag of the command tree back to its default, since
// rootCmd is shared by all tests in the package.
func resetFlags(t *testing.T, c *cobra.Command) {
	t.Helper()

	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(t, sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(t, rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "barscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	output, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "recognition provider")
	assert.Contains(t, output, "Available Commands:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)

	output, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "barscan version")
}

func TestRootCommandFlagsDoNotCarryOver(t *testing.T) {
	isolate(t)

	_, err := execute(t, "--help")
	require.NoError(t, err)

	output, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "barscan version")
	assert.NotContains(t, output, "Available Commands:")

	db := filepath.Join(t.TempDir(), "products.db")
	_, err = execute(t, "catalog", "add", "--db", db, "--name", "Green Tea", "--barcode", "4006381333931")
	require.NoError(t, err)

	_, err = execute(t, "catalog", "add", "--db", db)
	assert.Error(t, err, "--name must not survive from the previous run")
}

func TestLookupDoesNotSeed(t *testing.T) {
	isolate(t)
	db := filepath.Join(t.TempDir(), "products.db")

	output, err := execute(t, "lookup", "--db", db, "SKU-001")
	require.NoError(t, err)
	assert.Contains(t, output, `"found": false`)

	store, err := catalog.Open(catalog.Options{Path: db})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	count, err := catalog.NewRepository(store.DB()).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRootCommandSubcommands(t *testing.T) {
	commandNames := make([]string, 0)
	for _, sub := range rootCmd.Commands() {
		commandNames = append(commandNames, sub.Name())
	}

	for _, expected := range []string{"serve", "decode", "lookup", "catalog", "config"} {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	_, err := execute(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestCatalogCommands(t *testing.T) {
	isolate(t)
	db := filepath.Join(t.TempDir(), "products.db")

	output, err := execute(t, "catalog", "init", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "(1 products)")

	output, err = execute(t, "catalog", "add", "--db", db, "--name", "Green Tea", "--barcode", "4006381333931", "--price", "3.49")
	require.NoError(t, err)
	assert.Contains(t, output, `"name": "Green Tea"`)

	_, err = execute(t, "catalog", "add", "--db", db, "--name", "Copy", "--barcode", "4006381333931")
	assert.ErrorIs(t, err, catalog.ErrDuplicate)

	output, err = execute(t, "lookup", "--db", db, "4006381333931")
	require.NoError(t, err)
	assert.Contains(t, output, `"found": true`)
	assert.Contains(t, output, `"matched_on": "barcode"`)

	output, err = execute(t, "lookup", "--db", db, "SKU-001")
	require.NoError(t, err)
	assert.Contains(t, output, `"Sample Item"`)

	output, err = execute(t, "lookup", "--db", db, "unknown")
	require.NoError(t, err)
	assert.Contains(t, output, `"found": false`)
}

func TestConfigShowMasksKey(t *testing.T) {
	isolate(t)
	t.Setenv("CLOUDMERSIVE_API_KEY", "supersecretkey1234")

	output, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "****1234")
	assert.NotContains(t, output, "supersecretkey")
	assert.Contains(t, output, "db_path:")
}

func TestDecodeRequiresAPIKey(t *testing.T) {
	isolate(t)
	file := testutil.WriteTempFile(t, "frame.png", testutil.PNGBytes(t, 8, 8))

	_, err := execute(t, "decode", file)
	assert.ErrorIs(t, err, barcode.ErrMissingAPIKey)
}

func TestDecodeFiles(t *testing.T) {
	stub := testutil.NewProviderStub(t)
	stub.RespondWithCodes(testutil.Found("EAN_13", "8901234567890"))
	client := barcode.NewClient(barcode.Config{APIKey: "k", BaseURL: stub.URL()})

	good := testutil.WriteTempFile(t, "a.png", testutil.PNGBytes(t, 8, 8))
	missing := filepath.Join(t.TempDir(), "missing.png")

	results, err := decodeFiles(context.Background(), client, nil, []string{good, missing, good}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, good, results[0].File)
	assert.True(t, results[0].OK)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, "8901234567890", *results[0].Results[0].Text)
	assert.Nil(t, results[0].Results[0].Product)

	assert.False(t, results[1].OK)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].OK)

	assert.Equal(t, 2, stub.Hits())
	last, ok := stub.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "a.png", last.Filename)
	assert.Equal(t, "image/png", last.ContentType)
}

func TestDecodeFiles_WithLookup(t *testing.T) {
	stub := testutil.NewProviderStub(t)
	stub.RespondWithCodes(testutil.Found("EAN_13", "8901234567890"), testutil.Found("QR_CODE", "nothing"))
	client := barcode.NewClient(barcode.Config{APIKey: "k", BaseURL: stub.URL()})

	cfg := config.DefaultConfig()
	cfg.Catalog.DBPath = testutil.TempDBPath(t)
	store, err := openCatalog(context.Background(), &cfg, true)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	file := testutil.WriteTempFile(t, "shelf.jpg", []byte("jpeg"))
	results, err := decodeFiles(context.Background(), client, catalog.NewResolver(store), []string{file}, 1)
	require.NoError(t, err)
	require.Len(t, results[0].Results, 2)

	require.NotNil(t, results[0].Results[0].Product)
	assert.Equal(t, "Sample Item", results[0].Results[0].Product.Name)
	assert.Nil(t, results[0].Results[1].Product)
}

func TestDecodeFiles_WithLookupSkipsBlankText(t *testing.T) {
	stub := testutil.NewProviderStub(t)
	stub.RespondWithCodes(testutil.Found("EAN_13", "8901234567890"), testutil.Found("QR_CODE", "   "))
	client := barcode.NewClient(barcode.Config{APIKey: "k", BaseURL: stub.URL()})

	cfg := config.DefaultConfig()
	cfg.Catalog.DBPath = testutil.TempDBPath(t)
	store, err := openCatalog(context.Background(), &cfg, true)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	file := testutil.WriteTempFile(t, "a.jpg", []byte("jpeg"))
	results, err := decodeFiles(context.Background(), client, catalog.NewResolver(store), []string{file}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Results, 2)

	assert.True(t, results[0].OK)
	require.NotNil(t, results[0].Results[0].Product)
	assert.Equal(t, "SKU-001", *results[0].Results[0].Product.SKU)
	assert.Equal(t, "   ", *results[0].Results[1].Text)
	assert.Nil(t, results[0].Results[1].Product)
}

func TestDecodeFiles_UpstreamDetails(t *testing.T) {
	stub := testutil.NewProviderStub(t)
	stub.RespondWith(401, "invalid key")
	client := barcode.NewClient(barcode.Config{APIKey: "k", BaseURL: stub.URL()})

	file := testutil.WriteTempFile(t, "a.png", []byte("png"))
	results, err := decodeFiles(context.Background(), client, nil, []string{file}, 0)
	require.NoError(t, err)

	assert.False(t, results[0].OK)
	assert.Equal(t, "Cloudmersive HTTP 401", results[0].Error)
	assert.Equal(t, "invalid key", results[0].Details)
}
