package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/fuel-price-scraper/internal/aggregator"
	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/config"
	"github.com/andygrunwald/fuel-price-scraper/internal/database"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

func TestBuildSourcesKeepsTableOrder(t *testing.T) {
	sources, err := buildSources(config.DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)

	var names []string
	var jurisdictions []models.Jurisdiction
	for _, s := range sources {
		names = append(names, s.Name())
		jurisdictions = append(jurisdictions, s.Jurisdictions()...)
	}
	assert.Equal(t, []string{"NSW+TAS", "NT", "QLD", "SA", "WA"}, names)
	assert.ElementsMatch(t, models.Jurisdictions(), jurisdictions)
}

func TestBuildSourcesSelection(t *testing.T) {
	sources, err := buildSources(config.DefaultConfig(), []string{"WA", " NT"}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "NT", sources[0].Name())
	assert.Equal(t, "WA", sources[1].Name())

	_, err = buildSources(config.DefaultConfig(), []string{"VIC"}, zerolog.Nop())
	assert.ErrorContains(t, err, `unknown source "VIC"`)
}

func TestWriteStationsCSV(t *testing.T) {
	var buf bytes.Buffer
	err := writeStationsCSV(&buf, []models.Station{
		{Jurisdiction: models.NSW, ID: 1, Latitude: -33.8997, Longitude: 151.1988},
		{Jurisdiction: models.WA, ID: 25513, Latitude: -31.9523, Longitude: 115.8613},
	})
	require.NoError(t, err)
	assert.Equal(t, "jurisdiction,id,latitude,longitude\n"+
		"NSW,1,-33.8997,151.1988\n"+
		"WA,25513,-31.9523,115.8613\n", buf.String())
}

func TestWriteStationsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStationsCSV(&buf, nil))
	assert.Equal(t, "jurisdiction,id,latitude,longitude\n", buf.String())
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "verbose", "json")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}

func TestHistoryCommand(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "fuel.db")

	now := time.Date(2024, 4, 16, 8, 0, 0, 0, time.UTC)
	db, err := database.Open(ctx, dsn, zerolog.Nop(), database.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	obs := models.PriceObservation{Jurisdiction: models.NSW, Station: 1, Fuel: models.Unleaded91, Price: models.PriceFromFloat(189.9)}
	_, err = db.Apply(ctx, []models.PriceObservation{obs})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg = config.DefaultConfig()
	cfg.LogLevel = "error"

	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--db", dsn, "--jurisdiction", "NSW", "--station", "1", "--fuel", "Unleaded91"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "Price:      189.9")
	assert.Contains(t, out.String(), "History (1 changes):")
	assert.Contains(t, out.String(), "2024-04-16 08:00:00 UTC  189.9")
}

func TestVersionCommand(t *testing.T) {
	cfg = config.DefaultConfig()

	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Version:    dev")
}

type countingSource struct {
	name  string
	j     models.Jurisdiction
	err   error
	calls atomic.Int32
}

func (s *countingSource) Name() string                        { return s.name }
func (s *countingSource) Jurisdictions() []models.Jurisdiction { return []models.Jurisdiction{s.j} }

func (s *countingSource) ListStations(context.Context) ([]models.Station, error) {
	return nil, nil
}

func (s *countingSource) ListPrices(context.Context) ([]models.PriceObservation, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []models.PriceObservation{
		{Jurisdiction: s.j, Station: 1, Fuel: models.Diesel, Price: models.PriceFromFloat(199.9)},
	}, nil
}

func TestRunPricesFetchesBeforeOpeningStore(t *testing.T) {
	nt := &countingSource{name: "NT", j: models.NT}
	wa := &countingSource{name: "WA", j: models.WA, err: errors.New("upstream down")}
	agg := aggregator.New([]api.Source{nt, wa}, zerolog.Nop())

	dsn := filepath.Join(t.TempDir(), "missing", "dir", "fuel.db")
	err := runPrices(context.Background(), agg, dsn, nil, zerolog.Nop())

	require.Error(t, err)
	var se *database.StorageError
	assert.ErrorAs(t, err, &se)
	assert.ErrorContains(t, err, "WA")
	assert.Equal(t, int32(1), nt.calls.Load())
	assert.Equal(t, int32(1), wa.calls.Load())
}

func TestRunPricesCommitsHealthySources(t *testing.T) {
	nt := &countingSource{name: "NT", j: models.NT}
	wa := &countingSource{name: "WA", j: models.WA, err: errors.New("upstream down")}
	agg := aggregator.New([]api.Source{nt, wa}, zerolog.Nop())

	dsn := filepath.Join(t.TempDir(), "fuel.db")
	err := runPrices(context.Background(), agg, dsn, nil, zerolog.Nop())

	var failed aggregator.Failure
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "WA", failed.Source)

	db, err := database.Open(context.Background(), dsn, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	n, err := db.CountPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
