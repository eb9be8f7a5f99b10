package cmd

import (
	"fmt"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "barscan",
	Short: "Barcode decode and product lookup service",
	Long: `barscan decodes barcodes and QR codes in images through a hosted
recognition provider and looks decoded codes up in a local product catalog.

Decoding and lookup are separate steps: a decoded code is only resolved
when the caller asks for it.

Examples:
  barscan serve --port 5000
  barscan decode frame.jpg
  barscan decode --lookup shelf1.jpg shelf2.jpg
  barscan lookup 8901234567890
  barscan catalog add --name "Tea" --barcode 4006381333931 --price 3.49`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		setupLogging(globalConfig)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			ver, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "barscan version %s\n", ver)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is barscan.yaml in ., $HOME, $XDG_CONFIG_HOME/barscan, /etc/barscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", config.DefaultConfig().Catalog.DBPath,
		"product catalog sqlite file (also DB_PATH)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("catalog.db_path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads the config file and environment into globalConfig.
func initConfig() error {
	configLoader = config.NewLoader()

	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

// setupLogging installs the JSON slog handler. Logs go to stderr so command
// output on stdout stays machine readable.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch {
	case cfg.Verbose:
		logLevel = slog.LevelDebug
	case cfg.LogLevel == "debug":
		logLevel = slog.LevelDebug
	case cfg.LogLevel == "warn":
		logLevel = slog.LevelWarn
	case cfg.LogLevel == "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the loaded configuration, loading it on first use.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// writeJSON prints v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
