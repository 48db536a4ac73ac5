package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofetch/internal/config"
	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/schema"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	batchSize int
)

var rootCmd = &cobra.Command{
	Use:   "gofetch",
	Short: "Schema-aware record fetching and caching",
	Long: `gofetch resolves fetch trees over a relational source: a root model is
loaded by params, dependent field expressions are followed across model
references, and every record is cached in a shared identity-keyed store.

Features:
  - Query expressions with filters, arguments and selectors
  - Forward and inverse references resolved from the model configuration
  - Coalescing of overlapping requests
  - Calendar range decomposition for time-partitioned models`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gofetch.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override transport batch size (values per IN list)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	BatchSize int
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		BatchSize: batchSize,
	}
}

// loadConfig reads the configuration file, applies flag overrides and
// validates the result.
func loadConfig(requireSource bool) (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.BatchSize)

	if err := cfg.Validate(requireSource); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger and model registry.
func setup(requireSource bool) (*config.Config, *logger.Logger, *schema.Registry, error) {
	cfg, err := loadConfig(requireSource)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, err := schema.FromConfig(cfg, nil, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, reg, nil
}
