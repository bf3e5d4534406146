// Package fpdapi provides an API client for the Fuel Price Direct API used by the
// Queensland and South Australian fuel price reporting schemes.
package fpdapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

const (
	// QLDBaseURL is the API host of the Queensland scheme.
	QLDBaseURL = "https://fppdirectapi-prod.fuelpricesqld.com.au"
	// SABaseURL is the API host of the South Australian scheme.
	SABaseURL = "https://fppdirectapi-prod.safuelpricinginformation.com.au"

	// Every site is returned regardless of these parameters; the API only logs them.
	pricesPath   = "/Price/GetSitesPrices?countryId=21&geoRegionLevel=3&geoRegionId=%d"
	stationsPath = "/Subscriber/GetFullSiteDetails?countryId=21&geoRegionLevel=3&geoRegionId=%d"
)

// unavailablePrice is the reserved price meaning "not available", in tenths of a cent.
var unavailablePrice = decimal.NewFromInt(9999)

var tenthsPerCent = decimal.NewFromInt(10)

var fuelGrades = map[string]models.FuelGrade{
	"2":  models.Unleaded91,
	"3":  models.Diesel,
	"4":  models.LPG,
	"5":  models.Unleaded95,
	"8":  models.Unleaded98,
	"12": models.Ethanol10,
	"14": models.PremiumDiesel,
	"19": models.Ethanol85,
	"21": models.Unleaded91, // OPAL, low aromatic unleaded
}

// region describes one scheme using the API.
type region struct {
	jurisdiction models.Jurisdiction
	baseURL      string
	geoRegionID  int
}

var regions = map[models.Jurisdiction]region{
	models.QLD: {jurisdiction: models.QLD, baseURL: QLDBaseURL, geoRegionID: 1},
	models.SA:  {jurisdiction: models.SA, baseURL: SABaseURL, geoRegionID: 4},
}

// pricesResponse represents the JSON response of GetSitesPrices.
type pricesResponse struct {
	SitePrices []sitePrice `json:"SitePrices"`
}

type sitePrice struct {
	SiteID             models.StationID `json:"SiteId"`
	FuelID             int              `json:"FuelId"`
	CollectionMethod   string           `json:"CollectionMethod"`
	TransactionDateUTC string           `json:"TransactionDateUtc"`
	// Price is in tenths of a cent per litre.
	Price decimal.Decimal `json:"Price"`
}

// sitesResponse represents the JSON response of GetFullSiteDetails.
type sitesResponse struct {
	Sites []site `json:"S"`
}

type site struct {
	SiteID    models.StationID `json:"S"`
	Name      string           `json:"N"`
	Latitude  float64          `json:"Lat"`
	Longitude float64          `json:"Lng"`
}

// Source implements the api.Source interface for one Fuel Price Direct scheme.
type Source struct {
	client  *api.Client
	region  region
	token   string
	baseURL string
	codes   api.FuelCodes
	logger  zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// New creates a new source for jurisdiction, which must be QLD or SA.
func New(client *api.Client, jurisdiction models.Jurisdiction, token string, logger zerolog.Logger, opts ...Option) (*Source, error) {
	r, ok := regions[jurisdiction]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrUnexpectedJurisdiction, jurisdiction)
	}

	s := &Source{
		client:  client,
		region:  r,
		token:   token,
		baseURL: r.baseURL,
		codes:   api.FuelCodes{Source: jurisdiction.String(), Grades: fuelGrades},
		logger:  logger.With().Str("source", jurisdiction.String()).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return s.region.jurisdiction.String()
}

// Jurisdictions returns the single jurisdiction of the scheme.
func (s *Source) Jurisdictions() []models.Jurisdiction {
	return []models.Jurisdiction{s.region.jurisdiction}
}

// ListStations fetches the full site list of the scheme.
func (s *Source) ListStations(ctx context.Context) ([]models.Station, error) {
	var resp sitesResponse
	if err := s.get(ctx, stationsPath, &resp); err != nil {
		return nil, api.NewFetchError(s.Name(), err)
	}

	stations := make([]models.Station, 0, len(resp.Sites))
	for _, raw := range resp.Sites {
		stations = append(stations, models.Station{
			Jurisdiction: s.region.jurisdiction,
			ID:           raw.SiteID,
			Latitude:     raw.Latitude,
			Longitude:    raw.Longitude,
		})
	}

	s.logger.Info().Int("count", len(stations)).Msg("fetched stations")
	return stations, nil
}

// ListPrices fetches every site price of the scheme.
func (s *Source) ListPrices(ctx context.Context) ([]models.PriceObservation, error) {
	var resp pricesResponse
	if err := s.get(ctx, pricesPath, &resp); err != nil {
		return nil, api.NewFetchError(s.Name(), err)
	}

	prices := make([]models.PriceObservation, 0, len(resp.SitePrices))
	for _, raw := range resp.SitePrices {
		fuel, ok, err := s.codes.Decode(strconv.Itoa(raw.FuelID))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		prices = append(prices, models.PriceObservation{
			Jurisdiction: s.region.jurisdiction,
			Station:      raw.SiteID,
			Fuel:         fuel,
			Price:        normalizePrice(raw.Price),
		})
	}

	s.logger.Info().Int("count", len(prices)).Msg("fetched prices")
	return prices, nil
}

func (s *Source) get(ctx context.Context, pathFormat string, v any) error {
	if s.token == "" {
		return api.ErrMissingCredentials
	}
	url := s.baseURL + fmt.Sprintf(pathFormat, s.region.geoRegionID)

	header := http.Header{}
	header.Set("authorization", "fpdapi subscribertoken="+s.token)

	s.logger.Debug().Str("url", url).Msg("fetching from Fuel Price Direct API")
	return s.client.GetJSON(ctx, url, header, v)
}

// normalizePrice converts tenths of a cent to cents and maps the sentinel to an absent price.
func normalizePrice(raw decimal.Decimal) models.Price {
	if raw.Equal(unavailablePrice) {
		return models.NoPrice
	}
	return models.PriceOf(raw.Div(tenthsPerCent))
}
