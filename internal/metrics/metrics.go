// Package metrics provides Prometheus metrics for a scraper run.
// The run is a batch job, so metrics are written to a node_exporter textfile instead of being served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andygrunwald/fuel-price-scraper/internal/database"
)

// Metrics holds all Prometheus metrics for the scraper.
type Metrics struct {
	registry *prometheus.Registry

	// Source metrics
	SourceRequestsTotal   *prometheus.CounterVec
	SourceRequestDuration *prometheus.HistogramVec
	SourceObservations    *prometheus.GaugeVec
	LastSuccessTimestamp  *prometheus.GaugeVec

	// Database metrics
	DBOperationsTotal *prometheus.CounterVec
	PriceOutcomes     *prometheus.GaugeVec
	ApplyDuration     prometheus.Gauge
}

// New creates Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SourceRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_source_requests_total",
				Help: "Total number of source invocations by source, operation and status",
			},
			[]string{"source", "operation", "status"},
		),
		SourceRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fuelscraper_source_request_duration_seconds",
				Help:    "Source invocation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "operation"},
		),
		SourceObservations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelscraper_source_observations",
				Help: "Number of stations or prices returned by the last successful invocation",
			},
			[]string{"source", "operation"},
		),
		LastSuccessTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelscraper_source_last_success_timestamp_seconds",
				Help: "Timestamp of the last successful invocation",
			},
			[]string{"source", "operation"},
		),
		DBOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fuelscraper_db_operations_total",
				Help: "Total number of database operations by type and status",
			},
			[]string{"operation", "status"},
		),
		PriceOutcomes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fuelscraper_price_outcomes",
				Help: "Number of observations by reconciliation outcome in the last apply",
			},
			[]string{"outcome"},
		),
		ApplyDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fuelscraper_apply_duration_seconds",
				Help: "Duration of the last apply transaction in seconds",
			},
		),
	}
}

// Registry returns the registry holding all metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSource records one source invocation.
func (m *Metrics) RecordSource(source, operation string, duration time.Duration, count int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SourceRequestsTotal.WithLabelValues(source, operation, status).Inc()
	m.SourceRequestDuration.WithLabelValues(source, operation).Observe(duration.Seconds())
	if err == nil {
		m.SourceObservations.WithLabelValues(source, operation).Set(float64(count))
		m.LastSuccessTimestamp.WithLabelValues(source, operation).SetToCurrentTime()
	}
}

// RecordApply records one apply transaction.
func (m *Metrics) RecordApply(summary database.Summary, duration time.Duration, err error) {
	if err != nil {
		m.DBOperationsTotal.WithLabelValues("apply", "error").Inc()
		return
	}
	m.DBOperationsTotal.WithLabelValues("apply", "success").Inc()
	m.PriceOutcomes.WithLabelValues(database.Inserted.String()).Set(float64(summary.Inserted))
	m.PriceOutcomes.WithLabelValues(database.Changed.String()).Set(float64(summary.Changed))
	m.PriceOutcomes.WithLabelValues(database.Unchanged.String()).Set(float64(summary.Unchanged))
	m.ApplyDuration.Set(duration.Seconds())
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
