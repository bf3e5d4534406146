package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/aggregator"
	"github.com/andygrunwald/fuel-price-scraper/internal/database"
	"github.com/andygrunwald/fuel-price-scraper/internal/metrics"
)

func pricesCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Fetch current prices and record changes",
		Long: `Fetches the current prices of every source and reconciles them against the
database in a single transaction. New prices and price changes are appended to
the price history.

The command exits non-zero if any source failed; the prices of the other
sources are still committed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			ctx := context.Background()

			logger.Info().
				Str("version", Version).
				Str("commit", Commit).
				Msg("starting price run")

			m := newMetrics()
			agg, err := newAggregator(sources, m, logger)
			if err != nil {
				return err
			}

			err = runPrices(ctx, agg, cfg.DatabaseDSN, m, logger)
			writeMetrics(m, logger)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "Comma-separated list of sources (default all)")

	return cmd
}

// runPrices fetches every source before touching the store, so each source is attempted
// and reported even when the database is unreachable. m may be nil.
func runPrices(ctx context.Context, agg *aggregator.Aggregator, dsn string, m *metrics.Metrics, logger zerolog.Logger) error {
	prices, failures := agg.Prices(ctx)

	opts := []database.Option{}
	if m != nil {
		opts = append(opts, database.WithMetrics(m))
	}
	db, err := database.Open(ctx, dsn, logger, opts...)
	if err != nil {
		return errors.Join(err, aggregator.FailuresError(failures))
	}
	defer db.Close()

	summary, err := db.Apply(ctx, prices)
	if err != nil {
		return errors.Join(err, aggregator.FailuresError(failures))
	}

	logger.Info().
		Int("observations", summary.Observations).
		Int("changes", summary.Changes()).
		Int("failures", len(failures)).
		Msgf("%d changes were recorded", summary.Changes())

	return aggregator.FailuresError(failures)
}
