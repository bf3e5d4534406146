package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/aggregator"
	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/api/fpdapi"
	"github.com/andygrunwald/fuel-price-scraper/internal/api/fuelcheck"
	"github.com/andygrunwald/fuel-price-scraper/internal/api/fuelwatch"
	"github.com/andygrunwald/fuel-price-scraper/internal/api/myfuelnt"
	"github.com/andygrunwald/fuel-price-scraper/internal/config"
	"github.com/andygrunwald/fuel-price-scraper/internal/metrics"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
	"github.com/andygrunwald/fuel-price-scraper/internal/tokencache"
)

// sourceDeps are the shared dependencies handed to every source constructor.
type sourceDeps struct {
	cfg    *config.Config
	client *api.Client
	logger zerolog.Logger
}

type sourceEntry struct {
	name  string
	build func(sourceDeps) (api.Source, error)
}

// sourceTable lists every source in the order it is run and reported.
var sourceTable = []sourceEntry{
	{fuelcheck.SourceName, func(d sourceDeps) (api.Source, error) {
		store := tokencache.NewFileStore(d.cfg.TokenCachePath("fuelcheck"))
		tokens := tokencache.New(store, nil, d.logger)
		creds := fuelcheck.Credentials{
			ClientID:     d.cfg.Credentials.NSWClientID,
			ClientSecret: d.cfg.Credentials.NSWClientSecret,
		}
		return fuelcheck.New(d.client, tokens, creds, d.logger), nil
	}},
	{myfuelnt.SourceName, func(d sourceDeps) (api.Source, error) {
		return myfuelnt.New(d.client, d.logger), nil
	}},
	{models.QLD.String(), func(d sourceDeps) (api.Source, error) {
		return fpdapi.New(d.client, models.QLD, d.cfg.Credentials.QLDToken, d.logger)
	}},
	{models.SA.String(), func(d sourceDeps) (api.Source, error) {
		return fpdapi.New(d.client, models.SA, d.cfg.Credentials.SAToken, d.logger)
	}},
	{fuelwatch.SourceName, func(d sourceDeps) (api.Source, error) {
		return fuelwatch.New(d.client, d.logger, fuelwatch.WithRetryPolicy(d.cfg.RetryPolicy())), nil
	}},
}

// sourceNames returns the names of all known sources.
func sourceNames() []string {
	names := make([]string, 0, len(sourceTable))
	for _, e := range sourceTable {
		names = append(names, e.name)
	}
	return names
}

// buildSources constructs the selected sources in table order. An empty selection means all.
func buildSources(c *config.Config, selected []string, logger zerolog.Logger) ([]api.Source, error) {
	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !isKnownSource(name) {
			return nil, fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(sourceNames(), ", "))
		}
		want[name] = true
	}

	deps := sourceDeps{
		cfg:    c,
		client: api.NewClient(c.HTTPTimeout),
		logger: logger,
	}

	var sources []api.Source
	for _, e := range sourceTable {
		if len(want) > 0 && !want[e.name] {
			continue
		}
		s, err := e.build(deps)
		if err != nil {
			return nil, fmt.Errorf("creating source %s: %w", e.name, err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

func isKnownSource(name string) bool {
	for _, e := range sourceTable {
		if e.name == name {
			return true
		}
	}
	return false
}

// newAggregator loads the credentials and wires the selected sources into an aggregator.
// m may be nil.
func newAggregator(selected []string, m *metrics.Metrics, logger zerolog.Logger) (*aggregator.Aggregator, error) {
	if err := cfg.LoadCredentials(); err != nil {
		return nil, err
	}

	sources, err := buildSources(cfg, selected, logger)
	if err != nil {
		return nil, err
	}

	opts := []aggregator.Option{aggregator.WithConcurrency(cfg.Concurrency)}
	if m != nil {
		opts = append(opts, aggregator.WithMetrics(m))
	}
	return aggregator.New(sources, logger, opts...), nil
}

// newMetrics returns nil when no metrics textfile is configured.
func newMetrics() *metrics.Metrics {
	if cfg.MetricsTextfile == "" {
		return nil
	}
	return metrics.New()
}

func writeMetrics(m *metrics.Metrics, logger zerolog.Logger) {
	if m == nil {
		return
	}
	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Error().Err(err).Str("path", cfg.MetricsTextfile).Msg("failed to write metrics")
		return
	}
	logger.Debug().Str("path", cfg.MetricsTextfile).Msg("wrote metrics")
}
