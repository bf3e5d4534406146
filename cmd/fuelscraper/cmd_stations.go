package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/aggregator"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

func stationsCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "Print all stations as CSV",
		Long: `Fetches the station list of every source and writes it to stdout as CSV
with the columns jurisdiction, id, latitude and longitude.

The command exits non-zero if any source failed; the stations of the other
sources are still written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			m := newMetrics()
			agg, err := newAggregator(sources, m, logger)
			if err != nil {
				return err
			}

			stations, failures := agg.Stations(context.Background())
			if err := writeStationsCSV(cmd.OutOrStdout(), stations); err != nil {
				return err
			}

			logger.Info().
				Int("stations", len(stations)).
				Int("failures", len(failures)).
				Msg("stations written")

			writeMetrics(m, logger)
			return aggregator.FailuresError(failures)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "Comma-separated list of sources (default all)")

	return cmd
}

func writeStationsCSV(w io.Writer, stations []models.Station) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(models.Station{}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, s := range stations {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("writing station %s/%d: %w", s.Jurisdiction, s.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
