package fuelcheck

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/tokencache"
)

type fakeGateway struct {
	*httptest.Server
	tokenCalls atomic.Int32
	dataCalls  atomic.Int32
}

func newFakeGateway(t *testing.T, payload []byte) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/client_credential/accesstoken":
			g.tokenCalls.Add(1)
			assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
			want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
			if r.Header.Get("Authorization") != want {
				http.Error(w, "bad credentials", http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access_token": "tok-123", "expires_in": "43199", "token_type": "BearerToken"}`))
		case "/FuelPriceCheck/v2/fuel/prices":
			g.dataCalls.Add(1)
			assert.Equal(t, "NSW|TAS", r.URL.Query().Get("states"))
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			assert.Equal(t, "id", r.Header.Get("apikey"))
			assert.Equal(t, "a", r.Header.Get("transactionid"))
			assert.Equal(t, "01/01/2001 01:01:01 AM", r.Header.Get("requesttimestamp"))
			_, _ = w.Write(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(g.Close)
	return g
}

func newTestSource(g *fakeGateway, store tokencache.Store, now time.Time) *Source {
	clock := func() time.Time { return now }
	cache := tokencache.New(store, clock, zerolog.Nop())
	return New(api.NewClient(time.Second), cache, Credentials{ClientID: "id", ClientSecret: "secret"}, zerolog.Nop(),
		WithBaseURL(g.URL), WithClock(clock))
}

func readPayload(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/prices.json")
	require.NoError(t, err)
	return data
}

func TestListPrices(t *testing.T) {
	g := newFakeGateway(t, readPayload(t))
	store := tokencache.NewMemoryStore(nil)
	now := time.Unix(1_713_300_000, 0)
	s := newTestSource(g, store, now)

	prices, err := s.ListPrices(context.Background())
	require.NoError(t, err)

	// B20 and EV are dropped
	require.Len(t, prices, 9)
	first := prices[0]
	assert.Equal(t, models.PriceKey{Jurisdiction: models.NSW, Station: 1, Fuel: models.Unleaded91}, first.Key())
	assert.True(t, models.SamePrice(models.PriceFromFloat(189.9), first.Price), "got %s", models.FormatPrice(first.Price))
	assert.Equal(t, models.TAS, prices[8].Jurisdiction)
	assert.Equal(t, models.StationID(61), prices[8].Station)

	grades := make(map[models.FuelGrade]bool)
	for _, p := range prices {
		assert.True(t, p.Price.Valid)
		grades[p.Fuel] = true
	}
	assert.Len(t, grades, 8)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", stored.AccessToken)
	assert.Equal(t, now.Unix()+43199, stored.ExpiresAt)
}

func TestTokenIsReusedAcrossCalls(t *testing.T) {
	g := newFakeGateway(t, readPayload(t))
	s := newTestSource(g, tokencache.NewMemoryStore(nil), time.Unix(1_713_300_000, 0))

	_, err := s.ListPrices(context.Background())
	require.NoError(t, err)
	_, err = s.ListStations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), g.tokenCalls.Load())
	assert.Equal(t, int32(2), g.dataCalls.Load())
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	g := newFakeGateway(t, readPayload(t))
	now := time.Unix(1_713_300_000, 0)
	store := tokencache.NewMemoryStore(&tokencache.Token{AccessToken: "stale", ExpiresAt: now.Unix() - 300})
	s := newTestSource(g, store, now)

	_, err := s.ListPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), g.tokenCalls.Load())
	assert.Equal(t, 1, store.Saves())
}

func TestListStations(t *testing.T) {
	g := newFakeGateway(t, readPayload(t))
	s := newTestSource(g, tokencache.NewMemoryStore(nil), time.Now())

	stations, err := s.ListStations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Station{
		{Jurisdiction: models.NSW, ID: 1, Latitude: -33.8997, Longitude: 151.1988},
		{Jurisdiction: models.TAS, ID: 61, Latitude: -42.8821, Longitude: 147.3272},
	}, stations)
}

func TestUnmappedFuelCode(t *testing.T) {
	payload := []byte(`{"stations": [], "prices": [{"stationcode": 1, "state": "NSW", "fueltype": "H2", "price": 1}]}`)
	g := newFakeGateway(t, payload)
	s := newTestSource(g, tokencache.NewMemoryStore(nil), time.Now())

	_, err := s.ListPrices(context.Background())
	var unmapped *api.UnmappedFuelCodeError
	require.ErrorAs(t, err, &unmapped)
	assert.Equal(t, "H2", unmapped.Code)
}

func TestUnexpectedState(t *testing.T) {
	payload := []byte(`{"stations": [], "prices": [{"stationcode": 1, "state": "VIC", "fueltype": "U91", "price": 1}]}`)
	g := newFakeGateway(t, payload)
	s := newTestSource(g, tokencache.NewMemoryStore(nil), time.Now())

	_, err := s.ListPrices(context.Background())
	var fe *api.FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, api.ErrUnexpectedJurisdiction)
}

func TestBadCredentials(t *testing.T) {
	g := newFakeGateway(t, readPayload(t))
	cache := tokencache.New(tokencache.NewMemoryStore(nil), nil, zerolog.Nop())
	s := New(api.NewClient(time.Second), cache, Credentials{ClientID: "id", ClientSecret: "wrong"}, zerolog.Nop(), WithBaseURL(g.URL))

	_, err := s.ListPrices(context.Background())
	var fe *api.FetchError
	require.ErrorAs(t, err, &fe)
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, int32(0), g.dataCalls.Load())
}

func TestMissingCredentials(t *testing.T) {
	g := newFakeGateway(t, readPayload(t))
	cache := tokencache.New(tokencache.NewMemoryStore(nil), nil, zerolog.Nop())
	s := New(api.NewClient(time.Second), cache, Credentials{}, zerolog.Nop(), WithBaseURL(g.URL))

	_, err := s.ListPrices(context.Background())
	assert.ErrorIs(t, err, api.ErrMissingCredentials)
	assert.Equal(t, int32(0), g.tokenCalls.Load())
}
