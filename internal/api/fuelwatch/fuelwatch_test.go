package fuelwatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

var noDelay = api.RetryPolicy{Retries: 3, Delay: time.Millisecond}

// fakeFuelWatch serves testdata/<fuelType>.json, or an empty list when no file exists.
// failures maps a fuel type to the statuses returned before a successful response.
type fakeFuelWatch struct {
	*httptest.Server

	mu       sync.Mutex
	failures map[string][]int
	requests []string
}

func newFakeFuelWatch(t *testing.T, failures map[string][]int) *fakeFuelWatch {
	t.Helper()
	f := &fakeFuelWatch{failures: failures}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sitesPath {
			http.NotFound(w, r)
			return
		}
		code := r.URL.Query().Get("fuelType")

		f.mu.Lock()
		f.requests = append(f.requests, code)
		var status int
		if pending := f.failures[code]; len(pending) > 0 {
			status = pending[0]
			f.failures[code] = pending[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}

		data, err := os.ReadFile("testdata/" + code + ".json")
		if os.IsNotExist(err) {
			_, _ = w.Write([]byte("[]"))
			return
		}
		require.NoError(t, err)
		_, _ = w.Write(data)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeFuelWatch) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestSource(f *fakeFuelWatch) *Source {
	return New(api.NewClient(time.Second), zerolog.Nop(), WithBaseURL(f.URL), WithRetryPolicy(noDelay))
}

func TestListPricesQueriesEveryFuelTypeInOrder(t *testing.T) {
	f := newFakeFuelWatch(t, nil)
	s := newTestSource(f)

	prices, err := s.ListPrices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ULP", "PUP", "DSL", "BDL", "LPG", "98R", "E85"}, f.Requests())

	// station 25514 appears once per fuel type
	require.Len(t, prices, 4)
	want := []struct {
		key   models.PriceKey
		price models.Price
	}{
		{models.PriceKey{Jurisdiction: models.WA, Station: 25513, Fuel: models.Unleaded91}, models.PriceFromFloat(189.9)},
		{models.PriceKey{Jurisdiction: models.WA, Station: 25514, Fuel: models.Unleaded91}, models.PriceFromFloat(179.5)},
		{models.PriceKey{Jurisdiction: models.WA, Station: 25514, Fuel: models.Diesel}, models.PriceFromFloat(199.9)},
		{models.PriceKey{Jurisdiction: models.WA, Station: 25515, Fuel: models.Diesel}, models.NoPrice},
	}
	for i, w := range want {
		assert.Equal(t, w.key, prices[i].Key())
		assert.True(t, models.SamePrice(w.price, prices[i].Price), "%v: got %s", w.key, models.FormatPrice(prices[i].Price))
	}
}

func TestListStationsDeduplicates(t *testing.T) {
	f := newFakeFuelWatch(t, nil)
	s := newTestSource(f)

	stations, err := s.ListStations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Station{
		{Jurisdiction: models.WA, ID: 25513, Latitude: -31.9523, Longitude: 115.8613},
		{Jurisdiction: models.WA, ID: 25514, Latitude: -32.0569, Longitude: 115.7439},
		{Jurisdiction: models.WA, ID: 25515, Latitude: -31.8883, Longitude: 116.0076},
	}, stations)
}

func TestTransientFailureIsRetried(t *testing.T) {
	f := newFakeFuelWatch(t, map[string][]int{
		"ULP": {http.StatusInternalServerError},
		"DSL": {http.StatusServiceUnavailable, http.StatusInternalServerError},
	})
	s := newTestSource(f)

	prices, err := s.ListPrices(context.Background())
	require.NoError(t, err)
	assert.Len(t, prices, 4)
	assert.Equal(t, []string{"ULP", "ULP", "PUP", "DSL", "DSL", "DSL", "BDL", "LPG", "98R", "E85"}, f.Requests())
}

func TestPersistentFailureGivesUpAfterRetries(t *testing.T) {
	f := newFakeFuelWatch(t, map[string][]int{
		"PUP": {500, 500, 500, 500, 500},
	})
	s := newTestSource(f)

	_, err := s.ListPrices(context.Background())
	var fe *api.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, SourceName, fe.Source)
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)

	// one ULP call, then four PUP attempts; later fuel types are not queried
	assert.Equal(t, []string{"ULP", "PUP", "PUP", "PUP", "PUP"}, f.Requests())
}

func TestNonTransientFailureIsNotRetried(t *testing.T) {
	f := newFakeFuelWatch(t, map[string][]int{
		"ULP": {http.StatusNotFound},
	})
	s := newTestSource(f)

	_, err := s.ListStations(context.Background())
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, []string{"ULP"}, f.Requests())
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	f := newFakeFuelWatch(t, map[string][]int{
		"ULP": {500, 500, 500, 500},
	})
	s := New(api.NewClient(time.Second), zerolog.Nop(), WithBaseURL(f.URL),
		WithRetryPolicy(api.RetryPolicy{Retries: 3, Delay: time.Hour}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.ListPrices(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"ULP"}, f.Requests())
}

func TestPricesKeepTheirDecimalDigits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fuelType") != "ULP" {
			_, _ = w.Write([]byte("[]"))
			return
		}
		_, _ = w.Write([]byte(`[{"id": 1, "address": {}, "product": {"priceToday": 189.12345678901234567}}]`))
	}))
	t.Cleanup(srv.Close)

	s := New(api.NewClient(time.Second), zerolog.Nop(), WithBaseURL(srv.URL), WithRetryPolicy(noDelay))
	prices, err := s.ListPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "189.12345678901234567", models.FormatPrice(prices[0].Price))
}
