// Package main provides the entry point for the fuel price scraper CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/config"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

var cfg *config.Config

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()
	api.Version = Version

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fuelscraper",
		Short: "Fuel Price Scraper - Australian retail fuel prices in one place",
		Long: `Fuel Price Scraper fetches current retail fuel prices and station locations
from the Australian state and territory price reporting schemes and stores them,
together with the history of every price change, in a SQL database.

Sources:
  - NSW FuelCheck (NSW and TAS)
  - MyFuel NT
  - Fuel Price Direct API (QLD and SA)
  - FuelWatch (WA)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.DatabaseDSN, "db", cfg.DatabaseDSN, "Database DSN (postgres://, mysql:// or SQLite file path)")
	rootCmd.PersistentFlags().StringVar(&cfg.AuthFile, "auth-file", cfg.AuthFile, "YAML file with upstream credentials")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenCacheDir, "token-cache-dir", cfg.TokenCacheDir, "Directory for cached OAuth tokens")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	rootCmd.PersistentFlags().DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout of each upstream request")
	rootCmd.PersistentFlags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Number of sources fetched at the same time")
	rootCmd.PersistentFlags().StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write Prometheus metrics to this file after the run")

	// Add subcommands
	rootCmd.AddCommand(stationsCmd())
	rootCmd.AddCommand(pricesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// setupLogger writes to stderr; stdout is reserved for command output.
func setupLogger() zerolog.Logger {
	return newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

func newLogger(w io.Writer, logLevel, logFormat string) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if logFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		With().
		Timestamp().
		Logger()
}
