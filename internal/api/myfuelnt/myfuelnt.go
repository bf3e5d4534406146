// Package myfuelnt provides a client for MyFuel NT, the Northern Territory fuel price site.
// The site has no API; its results page embeds the data as JSON in a hidden input.
package myfuelnt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

const (
	// SourceName is the identifier for this source.
	SourceName = "NT"
	// DefaultBaseURL is the MyFuel NT host.
	DefaultBaseURL = "https://myfuelnt.nt.gov.au"

	// The page lists every outlet with all of its fuels regardless of FuelCode.
	resultsPath = "/Home/Results?searchOptions=region&Suburb=&SuburbId=0&RegionId=1&FuelCode=DL&BrandIdentifier="

	payloadSelector  = "#serverJson"
	payloadAttribute = "value"
)

var fuelCodes = api.FuelCodes{
	Source: SourceName,
	Grades: map[string]models.FuelGrade{
		"E85": models.Ethanol85,
		"LPG": models.LPG,
		"PD":  models.PremiumDiesel,
		"P98": models.Unleaded98,
		"P95": models.Unleaded95,
		"U91": models.Unleaded91,
		"LAF": models.Unleaded91, // low aromatic fuel
		"DL":  models.Diesel,
	},
}

// payload is the JSON document embedded in the results page.
type payload struct {
	FuelOutlets []fuelOutlet `json:"FuelOutlet"`
}

type fuelOutlet struct {
	ID             models.StationID `json:"FuelOutletId"`
	Name           string           `json:"Name"`
	Latitude       float64          `json:"Latitude"`
	Longitude      float64          `json:"Longitude"`
	AvailableFuels []availableFuel  `json:"AvailableFuels"`
}

type availableFuel struct {
	FuelCode    string          `json:"FuelCode"`
	Price       decimal.Decimal `json:"Price"`
	IsAvailable bool            `json:"isAvailable"`
}

// Source implements the api.Source interface for MyFuel NT.
type Source struct {
	client  *api.Client
	baseURL string
	logger  zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the MyFuel NT host.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// New creates a new MyFuel NT source.
func New(client *api.Client, logger zerolog.Logger, opts ...Option) *Source {
	s := &Source{
		client:  client,
		baseURL: DefaultBaseURL,
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

// Jurisdictions returns NT.
func (s *Source) Jurisdictions() []models.Jurisdiction {
	return []models.Jurisdiction{models.NT}
}

// ListStations returns every outlet on the results page.
func (s *Source) ListStations(ctx context.Context) ([]models.Station, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, api.NewFetchError(SourceName, err)
	}

	stations := make([]models.Station, 0, len(data.FuelOutlets))
	for _, outlet := range data.FuelOutlets {
		stations = append(stations, models.Station{
			Jurisdiction: models.NT,
			ID:           outlet.ID,
			Latitude:     outlet.Latitude,
			Longitude:    outlet.Longitude,
		})
	}

	s.logger.Info().Int("count", len(stations)).Msg("fetched stations")
	return stations, nil
}

// ListPrices returns the price of every fuel of every outlet.
// Fuels flagged as unavailable are reported with an absent price.
func (s *Source) ListPrices(ctx context.Context) ([]models.PriceObservation, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, api.NewFetchError(SourceName, err)
	}

	var prices []models.PriceObservation
	for _, outlet := range data.FuelOutlets {
		for _, raw := range outlet.AvailableFuels {
			fuel, ok, err := fuelCodes.Decode(raw.FuelCode)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			price := models.NoPrice
			if raw.IsAvailable {
				price = models.PriceOf(raw.Price)
			}
			prices = append(prices, models.PriceObservation{
				Jurisdiction: models.NT,
				Station:      outlet.ID,
				Fuel:         fuel,
				Price:        price,
			})
		}
	}

	s.logger.Info().Int("count", len(prices)).Msg("fetched prices")
	return prices, nil
}

func (s *Source) fetch(ctx context.Context) (*payload, error) {
	header := http.Header{}
	header.Set("Accept", "text/html")

	s.logger.Debug().Str("url", s.baseURL+resultsPath).Msg("fetching results page")

	body, err := s.client.Get(ctx, s.baseURL+resultsPath, header)
	if err != nil {
		return nil, err
	}
	return extractPayload(body)
}

// extractPayload reads the embedded JSON out of the results page.
func extractPayload(page []byte) (*payload, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	raw, ok := doc.Find(payloadSelector).First().Attr(payloadAttribute)
	if !ok {
		return nil, api.ErrPayloadNotFound
	}

	var data payload
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("parsing embedded JSON: %w", err)
	}
	return &data, nil
}
