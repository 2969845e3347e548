package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal        metric.Int64Counter
	HTTPRequestDuration      metric.Float64Histogram
	SearchRequestsTotal      metric.Int64Counter
	SearchCascadeTierTotal   metric.Int64Counter
	GenerationAttemptsTotal  metric.Int64Counter
	GenerationFailuresTotal  metric.Int64Counter
	DistanceCacheHitsTotal   metric.Int64Counter
	DistanceCacheMissesTotal metric.Int64Counter
	MatrixRequestsTotal      metric.Int64Counter
	DBQueryDurationSeconds   metric.Float64Histogram
	DBQueryErrorsTotal       metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() { // Ensure this only runs once
		meter := otel.GetMeterProvider().Meter("cairn-api") // Get meter from global provider
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.SearchRequestsTotal, err = meter.Int64Counter(
			"search_requests_total",
			metric.WithDescription("Total number of itinerary search requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_requests_total: %v", err)
		}

		m.SearchCascadeTierTotal, err = meter.Int64Counter(
			"search_cascade_tier_total",
			metric.WithDescription("Search requests answered per cascade tier"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_cascade_tier_total: %v", err)
		}

		m.GenerationAttemptsTotal, err = meter.Int64Counter(
			"generation_attempts_total",
			metric.WithDescription("Total number of itinerary generation attempts"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generation_attempts_total: %v", err)
		}

		m.GenerationFailuresTotal, err = meter.Int64Counter(
			"generation_failures_total",
			metric.WithDescription("Total number of failed itinerary generation attempts"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generation_failures_total: %v", err)
		}

		m.DistanceCacheHitsTotal, err = meter.Int64Counter(
			"distance_cache_hits_total",
			metric.WithDescription("Distance lookups served from the cache"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create distance_cache_hits_total: %v", err)
		}

		m.DistanceCacheMissesTotal, err = meter.Int64Counter(
			"distance_cache_misses_total",
			metric.WithDescription("Distance lookups that missed the cache"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create distance_cache_misses_total: %v", err)
		}

		m.MatrixRequestsTotal, err = meter.Int64Counter(
			"matrix_requests_total",
			metric.WithDescription("Outbound distance matrix API requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create matrix_requests_total: %v", err)
		}

		m.DBQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m // Assign to global variable
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		// This indicates a programming error - InitAppMetrics must be called at startup.
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
