// Package fuelcheck provides an API client for the NSW FuelCheck service, which also
// publishes Tasmanian prices.
package fuelcheck

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/tokencache"
)

const (
	// SourceName is the identifier for this source.
	SourceName = "NSW+TAS"
	// DefaultBaseURL is the API host of the NSW government API gateway.
	DefaultBaseURL = "https://api.onegov.nsw.gov.au"

	tokenPath  = "/oauth/client_credential/accesstoken?grant_type=client_credentials"
	pricesPath = "/FuelPriceCheck/v2/fuel/prices?states=NSW|TAS"

	// Only echoed back in response headers by the gateway.
	transactionID    = "a"
	requestTimestamp = "01/01/2001 01:01:01 AM"
)

var fuelCodes = api.FuelCodes{
	Source: SourceName,
	Grades: map[string]models.FuelGrade{
		"DL":  models.Diesel,
		"E10": models.Ethanol10,
		"E85": models.Ethanol85,
		"LPG": models.LPG,
		"P95": models.Unleaded95,
		"P98": models.Unleaded98,
		"PDL": models.PremiumDiesel,
		"U91": models.Unleaded91,
	},
	Ignore: []string{"B20", "EV"},
}

// tokenResponse represents the gateway's OAuth response.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// apiResponse represents the JSON response of the prices endpoint.
type apiResponse struct {
	Stations []station `json:"stations"`
	Prices   []price   `json:"prices"`
}

type station struct {
	Code     string   `json:"code"`
	State    string   `json:"state"`
	Location location `json:"location"`
}

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type price struct {
	StationCode models.StationID `json:"stationcode"`
	State       string           `json:"state"`
	FuelType    string           `json:"fueltype"`
	Price       decimal.Decimal  `json:"price"`
}

// Credentials are the gateway's client credentials ("API key" and "API secret").
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Source implements the api.Source interface for NSW FuelCheck.
type Source struct {
	client  *api.Client
	tokens  *tokencache.Cache
	creds   Credentials
	baseURL string
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithClock overrides the clock used to compute token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// New creates a new FuelCheck source. tokens must be constructed once per process and
// is consulted on every call.
func New(client *api.Client, tokens *tokencache.Cache, creds Credentials, logger zerolog.Logger, opts ...Option) *Source {
	s := &Source{
		client:  client,
		tokens:  tokens,
		creds:   creds,
		baseURL: DefaultBaseURL,
		now:     time.Now,
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

// Jurisdictions returns NSW and TAS.
func (s *Source) Jurisdictions() []models.Jurisdiction {
	return []models.Jurisdiction{models.NSW, models.TAS}
}

// ListStations fetches all NSW and TAS stations.
func (s *Source) ListStations(ctx context.Context) ([]models.Station, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, api.NewFetchError(SourceName, err)
	}

	stations := make([]models.Station, 0, len(data.Stations))
	for _, raw := range data.Stations {
		j, err := parseState(raw.State)
		if err != nil {
			return nil, api.NewFetchError(SourceName, err)
		}
		id, err := strconv.ParseUint(raw.Code, 10, 32)
		if err != nil {
			return nil, api.NewFetchError(SourceName, fmt.Errorf("parsing station code %q: %w", raw.Code, err))
		}
		stations = append(stations, models.Station{
			Jurisdiction: j,
			ID:           models.StationID(id),
			Latitude:     raw.Location.Latitude,
			Longitude:    raw.Location.Longitude,
		})
	}

	s.logger.Info().Int("count", len(stations)).Msg("fetched stations")
	return stations, nil
}

// ListPrices fetches all current NSW and TAS prices.
func (s *Source) ListPrices(ctx context.Context) ([]models.PriceObservation, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, api.NewFetchError(SourceName, err)
	}

	prices := make([]models.PriceObservation, 0, len(data.Prices))
	for _, raw := range data.Prices {
		fuel, ok, err := fuelCodes.Decode(raw.FuelType)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		j, err := parseState(raw.State)
		if err != nil {
			return nil, api.NewFetchError(SourceName, err)
		}
		prices = append(prices, models.PriceObservation{
			Jurisdiction: j,
			Station:      raw.StationCode,
			Fuel:         fuel,
			Price:        models.PriceOf(raw.Price),
		})
	}

	s.logger.Info().Int("count", len(prices)).Msg("fetched prices")
	return prices, nil
}

func (s *Source) fetch(ctx context.Context) (*apiResponse, error) {
	token, err := s.tokens.Token(ctx, s.fetchToken)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("apikey", s.creds.ClientID)
	header.Set("transactionid", transactionID)
	header.Set("requesttimestamp", requestTimestamp)

	s.logger.Debug().Str("url", s.baseURL+pricesPath).Msg("fetching prices from FuelCheck")

	var data apiResponse
	if err := s.client.GetJSON(ctx, s.baseURL+pricesPath, header, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *Source) fetchToken(ctx context.Context) (tokencache.Token, error) {
	if s.creds.ClientID == "" || s.creds.ClientSecret == "" {
		return tokencache.Token{}, api.ErrMissingCredentials
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(s.creds.ClientID + ":" + s.creds.ClientSecret))
	header := http.Header{}
	header.Set("Authorization", "Basic "+credentials)

	s.logger.Debug().Msg("requesting access token")

	var resp tokenResponse
	if err := s.client.GetJSON(ctx, s.baseURL+tokenPath, header, &resp); err != nil {
		return tokencache.Token{}, fmt.Errorf("requesting access token: %w", err)
	}

	// expires_in arrives as a quoted number
	expiresIn, err := resp.ExpiresIn.Int64()
	if err != nil {
		return tokencache.Token{}, fmt.Errorf("parsing expires_in %q: %w", resp.ExpiresIn, err)
	}

	return tokencache.Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   s.now().Unix() + expiresIn,
	}, nil
}

func parseState(state string) (models.Jurisdiction, error) {
	switch state {
	case "NSW":
		return models.NSW, nil
	case "TAS":
		return models.TAS, nil
	default:
		return 0, fmt.Errorf("%w: %q", api.ErrUnexpectedJurisdiction, state)
	}
}
