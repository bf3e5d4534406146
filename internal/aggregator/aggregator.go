// Package aggregator runs every configured source and collects their results.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Operation names used in logs and metrics.
const (
	OperationStations = "stations"
	OperationPrices   = "prices"
)

// Failure records one source that failed during a run.
type Failure struct {
	Source        string
	Jurisdictions []models.Jurisdiction
	Err           error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// FailuresError joins failures into a single error. It returns nil when there are none.
func FailuresError(failures []Failure) error {
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures))
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f)
		names = append(names, f.Source)
	}
	return fmt.Errorf("%d source(s) failed (%s): %w", len(failures), strings.Join(names, ", "), errors.Join(errs...))
}

// Recorder receives the outcome of every source invocation.
type Recorder interface {
	RecordSource(source, operation string, duration time.Duration, count int, err error)
}

// Aggregator invokes a fixed list of sources.
type Aggregator struct {
	sources     []api.Source
	concurrency int
	recorder    Recorder
	logger      zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency runs up to n sources at the same time. Values below 2 run them sequentially.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithMetrics reports every source invocation to r.
func WithMetrics(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

// New creates a new Aggregator over sources. Results and failures keep the order of sources.
func New(sources []api.Source, logger zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:     sources,
		concurrency: 1,
		logger:      logger.With().Str("component", "aggregator").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the configured sources.
func (a *Aggregator) Sources() []api.Source {
	return a.sources
}

// Stations fetches the station list of every source.
func (a *Aggregator) Stations(ctx context.Context) ([]models.Station, []Failure) {
	return collect(ctx, a, OperationStations, func(ctx context.Context, s api.Source) ([]models.Station, error) {
		return s.ListStations(ctx)
	})
}

// Prices fetches the current prices of every source.
func (a *Aggregator) Prices(ctx context.Context) ([]models.PriceObservation, []Failure) {
	return collect(ctx, a, OperationPrices, func(ctx context.Context, s api.Source) ([]models.PriceObservation, error) {
		return s.ListPrices(ctx)
	})
}

// result is the outcome of one source, stored at the source's index.
type result[T any] struct {
	data []T
	err  error
}

func collect[T any](ctx context.Context, a *Aggregator, operation string, fetch func(context.Context, api.Source) ([]T, error)) ([]T, []Failure) {
	results := make([]result[T], len(a.sources))

	var g errgroup.Group
	g.SetLimit(max(a.concurrency, 1))

	for i, source := range a.sources {
		i, source := i, source
		g.Go(func() error {
			results[i] = invoke(ctx, a, operation, source, fetch)
			// A failing source never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	var (
		all      []T
		failures []Failure
	)
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, Failure{
				Source:        a.sources[i].Name(),
				Jurisdictions: a.sources[i].Jurisdictions(),
				Err:           r.err,
			})
			continue
		}
		all = append(all, r.data...)
	}

	a.logger.Info().
		Str("operation", operation).
		Int("count", len(all)).
		Int("failures", len(failures)).
		Msg("aggregation completed")

	return all, failures
}

func invoke[T any](ctx context.Context, a *Aggregator, operation string, source api.Source, fetch func(context.Context, api.Source) ([]T, error)) result[T] {
	logger := a.logger.With().Str("source", source.Name()).Str("operation", operation).Logger()
	logger.Info().Msgf("fetching %s", source.Name())

	start := time.Now()
	data, err := fetch(ctx, source)
	duration := time.Since(start)

	if a.recorder != nil {
		a.recorder.RecordSource(source.Name(), operation, duration, len(data), err)
	}

	if err != nil {
		logger.Error().
			Err(err).
			Dur("duration", duration).
			Msg("source failed")
		return result[T]{err: err}
	}

	logger.Info().
		Int("count", len(data)).
		Dur("duration", duration).
		Msg("source succeeded")
	return result[T]{data: data}
}
