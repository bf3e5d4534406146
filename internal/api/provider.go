// Package api provides the interface and shared plumbing for fuel price sources.
package api

import (
	"context"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Source defines the interface for one upstream fuel price service.
type Source interface {
	// Name returns the source identifier used in logs and failure reports.
	Name() string

	// Jurisdictions returns the jurisdictions this source covers.
	Jurisdictions() []models.Jurisdiction

	// ListStations fetches every station the source knows about.
	ListStations(ctx context.Context) ([]models.Station, error)

	// ListPrices fetches the current price of every fuel at every station.
	ListPrices(ctx context.Context) ([]models.PriceObservation, error)
}
