// Package fuelwatch provides an API client for FuelWatch, the Western Australian fuel price service.
package fuelwatch

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

const (
	// SourceName is the identifier for this source.
	SourceName = "WA"
	// DefaultBaseURL is the FuelWatch host.
	DefaultBaseURL = "https://www.fuelwatch.wa.gov.au"

	sitesPath = "/api/sites"
)

// DefaultRetryPolicy retries HTTP 500 and 503 three times, five seconds apart.
var DefaultRetryPolicy = api.RetryPolicy{Retries: 3, Delay: 5 * time.Second}

// fuelType is one product code accepted by the sites endpoint.
type fuelType struct {
	code  string
	grade models.FuelGrade
}

// fuelTypes is queried in this order, one request each.
var fuelTypes = []fuelType{
	{"ULP", models.Unleaded91},
	{"PUP", models.Unleaded95},
	{"DSL", models.Diesel},
	{"BDL", models.PremiumDiesel},
	{"LPG", models.LPG},
	{"98R", models.Unleaded98},
	{"E85", models.Ethanol85},
}

// site represents one entry of the sites endpoint.
type site struct {
	ID      models.StationID `json:"id"`
	Name    string           `json:"siteName"`
	Address address          `json:"address"`
	Product product          `json:"product"`
}

type address struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type product struct {
	// PriceToday is null when the site does not sell the product today.
	PriceToday models.Price `json:"priceToday"`
}

// Source implements the api.Source interface for FuelWatch.
type Source struct {
	client  *api.Client
	baseURL string
	retry   api.RetryPolicy
	logger  zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the FuelWatch host.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p api.RetryPolicy) Option {
	return func(s *Source) { s.retry = p }
}

// New creates a new FuelWatch source.
func New(client *api.Client, logger zerolog.Logger, opts ...Option) *Source {
	s := &Source{
		client:  client,
		baseURL: DefaultBaseURL,
		retry:   DefaultRetryPolicy,
		logger:  logger.With().Str("source", SourceName).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return SourceName
}

// Jurisdictions returns WA.
func (s *Source) Jurisdictions() []models.Jurisdiction {
	return []models.Jurisdiction{models.WA}
}

// ListStations queries every fuel type and returns each site once.
// The first occurrence of a site wins.
func (s *Source) ListStations(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	seen := make(map[models.StationID]bool)

	err := s.eachFuelType(ctx, func(_ fuelType, sites []site) {
		for _, raw := range sites {
			if seen[raw.ID] {
				continue
			}
			seen[raw.ID] = true
			stations = append(stations, models.Station{
				Jurisdiction: models.WA,
				ID:           raw.ID,
				Latitude:     raw.Address.Latitude,
				Longitude:    raw.Address.Longitude,
			})
		}
	})
	if err != nil {
		return nil, api.NewFetchError(SourceName, err)
	}

	s.logger.Info().Int("count", len(stations)).Msg("fetched stations")
	return stations, nil
}

// ListPrices queries every fuel type and returns the union of all prices.
func (s *Source) ListPrices(ctx context.Context) ([]models.PriceObservation, error) {
	var prices []models.PriceObservation

	err := s.eachFuelType(ctx, func(ft fuelType, sites []site) {
		for _, raw := range sites {
			prices = append(prices, models.PriceObservation{
				Jurisdiction: models.WA,
				Station:      raw.ID,
				Fuel:         ft.grade,
				Price:        raw.Product.PriceToday,
			})
		}
	})
	if err != nil {
		return nil, api.NewFetchError(SourceName, err)
	}

	s.logger.Info().Int("count", len(prices)).Msg("fetched prices")
	return prices, nil
}

// eachFuelType fetches the sites of every fuel type sequentially and hands each
// response to fn. The first failed fuel type aborts the loop.
func (s *Source) eachFuelType(ctx context.Context, fn func(fuelType, []site)) error {
	for _, ft := range fuelTypes {
		sites, err := s.fetchSites(ctx, ft.code)
		if err != nil {
			return err
		}
		fn(ft, sites)
	}
	return nil
}

func (s *Source) fetchSites(ctx context.Context, code string) ([]site, error) {
	u := s.baseURL + sitesPath + "?" + url.Values{"fuelType": {code}}.Encode()
	logger := s.logger.With().Str("fuelType", code).Logger()

	var sites []site
	err := s.retry.Do(ctx, logger, func(ctx context.Context) error {
		logger.Debug().Str("url", u).Msg("fetching sites from FuelWatch")
		sites = nil
		return s.client.GetJSON(ctx, u, nil, &sites)
	})
	if err != nil {
		return nil, err
	}
	return sites, nil
}
