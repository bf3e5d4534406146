package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/andygrunwald/fuel-price-scraper/internal/database"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

func historyCmd() *cobra.Command {
	var (
		jurisdiction string
		station      uint32
		fuel         string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored price and change history of one fuel at one station",
		Example: `  fuelscraper history --jurisdiction NSW --station 1 --fuel Unleaded91
  fuelscraper history --jurisdiction WA --station 25513 --fuel Diesel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			ctx := context.Background()

			j, err := models.ParseJurisdiction(jurisdiction)
			if err != nil {
				return err
			}
			f, err := models.ParseFuelGrade(fuel)
			if err != nil {
				return err
			}
			key := models.PriceKey{Jurisdiction: j, Station: models.StationID(station), Fuel: f}

			db, err := database.Open(ctx, cfg.DatabaseDSN, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			record, err := db.GetPrice(ctx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("no price recorded for %s/%d/%s", key.Jurisdiction, key.Station, key.Fuel)
			}

			history, err := db.History(ctx, key)
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), record, history)
			return nil
		},
	}

	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "Jurisdiction code (NSW, NT, QLD, SA, TAS, WA)")
	cmd.Flags().Uint32Var(&station, "station", 0, "Station id within the jurisdiction")
	cmd.Flags().StringVar(&fuel, "fuel", "", "Fuel grade")
	_ = cmd.MarkFlagRequired("jurisdiction")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("fuel")

	return cmd
}

func printHistory(w io.Writer, record *models.PriceRecord, history []models.PriceHistoryEntry) {
	fmt.Fprintf(w, "%s station %d, %s\n", record.Jurisdiction, record.Station, record.Fuel)
	fmt.Fprintf(w, "  Price:      %s\n", models.FormatPrice(record.Price))
	fmt.Fprintf(w, "  Checked at: %s\n", record.CheckedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  Changed at: %s\n", record.ChangedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "\nHistory (%d changes):\n", len(history))
	for _, h := range history {
		fmt.Fprintf(w, "  %s  %s\n", h.ChangedAt.Format("2006-01-02 15:04:05 MST"), models.FormatPrice(h.Price))
	}
}
