// Package search runs the tiered catalog cascade and tops results up with
// generated itineraries when the catalog falls short.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/domain/generation"
	"github.com/cairntrips/cairn/internal/app/domain/scoring"
	"github.com/cairntrips/cairn/internal/app/models"
	appmetrics "github.com/cairntrips/cairn/internal/observability/metrics"
)

const (
	// highQualityFraction of the maximum possible score admits a catalog
	// result without topping up from the generator.
	highQualityFraction = 0.9

	// attemptsPerShortfall bounds total generation attempts relative to how
	// many itineraries the search is short.
	attemptsPerShortfall = 3
	retriesPerItinerary  = 5

	// Synthesized trip window when the traveler gave no dates at all.
	defaultTripLeadDays   = 7
	defaultTripLengthDays = 3

	persistTimeout = 10 * time.Second
)

// CatalogRepository is the slice of the itinerary store the cascade needs:
// the four tier reads plus the write-back for generated itineraries.
// *itineraries.RepositoryImpl satisfies it.
type CatalogRepository interface {
	FindExact(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)
	FindPartial(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)
	FindByLocation(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)
	FindFlexible(ctx context.Context, query *models.SearchQuery, limit int64) ([]models.FeaturedVacation, error)
	Insert(ctx context.Context, itinerary *models.FeaturedVacation) (primitive.ObjectID, error)
}

var _ Service = (*ServiceImpl)(nil)

// Service is the orchestrating entry point of the planner.
type Service interface {
	// Search walks the catalog tiers strictly in order (exact, partial,
	// location-only) and returns the first non-empty tier's results.
	// A tier whose read fails is logged and skipped; the call errors only
	// when every tier failed, which means the store itself is unreachable.
	Search(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)

	// SearchOrGenerate returns at least minResultsThreshold itineraries when
	// it can: high-scoring catalog matches first, topped up by generated
	// ones. Shortfalls are accepted, never errors; only an unreachable
	// catalog store fails the call.
	SearchOrGenerate(ctx context.Context, query *models.SearchQuery, minResultsThreshold int) ([]models.FeaturedVacation, error)
}

type ServiceImpl struct {
	logger    *zap.Logger
	catalog   CatalogRepository
	scorer    scoring.Service
	generator generation.Service
}

func NewServiceImpl(catalog CatalogRepository, scorer scoring.Service, generator generation.Service, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		catalog:   catalog,
		scorer:    scorer,
		generator: generator,
	}
}

func (s *ServiceImpl) Search(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "Search", trace.WithAttributes(
		attribute.Int("search.locations", len(query.Locations)),
		attribute.Int("search.activities", len(query.Activities)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Search"))
	appmetrics.Get().SearchRequestsTotal.Add(ctx, 1)

	tiers := []struct {
		name string
		run  func(context.Context) ([]models.FeaturedVacation, error)
	}{
		{"exact", func(ctx context.Context) ([]models.FeaturedVacation, error) { return s.catalog.FindExact(ctx, query) }},
		{"partial", func(ctx context.Context) ([]models.FeaturedVacation, error) { return s.catalog.FindPartial(ctx, query) }},
		{"location", func(ctx context.Context) ([]models.FeaturedVacation, error) { return s.catalog.FindByLocation(ctx, query) }},
	}

	var lastErr error
	failed := 0
	for _, tier := range tiers {
		found, err := tier.run(ctx)
		if err != nil {
			l.Warn("Search tier degraded",
				zap.String("tier", tier.name),
				zap.Any("error", err),
			)
			lastErr = err
			failed++
			continue
		}
		if len(found) > 0 {
			appmetrics.Get().SearchCascadeTierTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tier", tier.name),
			))
			l.Info("Search tier matched",
				zap.String("tier", tier.name),
				zap.Int("count", len(found)),
			)
			span.SetAttributes(attribute.String("search.tier", tier.name), attribute.Int("search.count", len(found)))
			span.SetStatus(codes.Ok, "Tier matched")
			return found, nil
		}
	}

	if failed == len(tiers) {
		err := fmt.Errorf("itinerary catalog unreachable: %w", lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "All tiers failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "No tier matched")
	return []models.FeaturedVacation{}, nil
}

func (s *ServiceImpl) SearchOrGenerate(ctx context.Context, query *models.SearchQuery, minResultsThreshold int) ([]models.FeaturedVacation, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchOrGenerate", trace.WithAttributes(
		attribute.Int("search.min_results", minResultsThreshold),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "SearchOrGenerate"))

	found, err := s.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Catalog unreachable")
		return nil, err
	}

	results := s.highQuality(ctx, found, query)
	if len(results) >= minResultsThreshold {
		l.Info("Catalog satisfied the search", zap.Int("count", len(results)))
		span.SetAttributes(attribute.Int("search.count", len(results)))
		span.SetStatus(codes.Ok, "Catalog satisfied the search")
		return results, nil
	}

	if !query.HasDates() {
		results = s.noDatesFallback(ctx, l, query, results, minResultsThreshold)
		span.SetAttributes(attribute.Int("search.count", len(results)))
		span.SetStatus(codes.Ok, "Dateless fallback")
		return results, nil
	}

	results = s.generateShortfall(ctx, l, query, results, minResultsThreshold)
	span.SetAttributes(attribute.Int("search.count", len(results)))
	span.SetStatus(codes.Ok, "Search completed")
	return results, nil
}

// highQuality keeps the itineraries scoring at least 90% of the maximum
// possible score, best first.
func (s *ServiceImpl) highQuality(ctx context.Context, found []models.FeaturedVacation, query *models.SearchQuery) []models.FeaturedVacation {
	if len(found) == 0 {
		return []models.FeaturedVacation{}
	}

	cutoff := highQualityFraction * s.scorer.Weights().MaxPossibleScore()
	scored := s.scorer.ScoreAndRank(ctx, found, query)

	results := make([]models.FeaturedVacation, 0, len(scored))
	for i := range scored {
		if scored[i].TotalScore >= cutoff {
			results = append(results, scored[i].Itinerary)
		}
	}
	return results
}

// noDatesFallback handles queries without travel dates, where generation has
// nothing to anchor a schedule on. The flexible tier fills the list first;
// if nothing at all turns up, one itinerary is generated against a
// synthesized trip window a week out. Neither path applies the high-quality
// score cutoff.
func (s *ServiceImpl) noDatesFallback(ctx context.Context, l *zap.Logger, query *models.SearchQuery, results []models.FeaturedVacation, minResultsThreshold int) []models.FeaturedVacation {
	found, err := s.catalog.FindFlexible(ctx, query, int64(minResultsThreshold))
	if err != nil {
		l.Warn("Flexible tier degraded", zap.Any("error", err))
	}
	if len(found) > 0 {
		appmetrics.Get().SearchCascadeTierTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tier", "flexible"),
		))
	}

	seen := make(map[primitive.ObjectID]struct{}, len(results))
	for i := range results {
		if results[i].ID != nil {
			seen[*results[i].ID] = struct{}{}
		}
	}
	for i := range found {
		if found[i].ID != nil {
			if _, dup := seen[*found[i].ID]; dup {
				continue
			}
			seen[*found[i].ID] = struct{}{}
		}
		results = append(results, found[i])
	}
	if len(results) > 0 {
		return results
	}

	itinerary, err := s.generator.Generate(ctx, withDefaultDates(query))
	if err != nil {
		l.Warn("Default-dates generation failed", zap.Any("error", err))
		return []models.FeaturedVacation{}
	}
	s.persistAsync(ctx, itinerary)
	return []models.FeaturedVacation{*itinerary}
}

// generateShortfall tops the result list up to the threshold with generated
// itineraries. Accumulator state for the loop (taken names, attempt counter)
// lives here, never on the service.
func (s *ServiceImpl) generateShortfall(ctx context.Context, l *zap.Logger, query *models.SearchQuery, results []models.FeaturedVacation, minResultsThreshold int) []models.FeaturedVacation {
	needed := minResultsThreshold - len(results)
	maxAttempts := attemptsPerShortfall * needed

	existingNames := make(map[string]struct{}, len(results))
	for i := range results {
		existingNames[results[i].TripName] = struct{}{}
	}

	attempts := 0
	for slot := 0; slot < needed && attempts < maxAttempts; slot++ {
		accepted := false
		for retry := 0; retry < retriesPerItinerary && attempts < maxAttempts; retry++ {
			itinerary, err := s.generator.GenerateUnique(ctx, query, attempts, existingNames)
			attempts++
			if err != nil {
				l.Warn("Generation attempt failed",
					zap.Int("attempt", attempts),
					zap.Any("error", err),
				)
				if queryCannotGenerate(err) {
					// The same query will fail every retry.
					return results
				}
				continue
			}
			if tooSimilar(itinerary, results) {
				l.Debug("Generated itinerary too similar, retrying",
					zap.String("trip_name", itinerary.TripName),
				)
				continue
			}

			existingNames[itinerary.TripName] = struct{}{}
			results = append(results, *itinerary)
			s.persistAsync(ctx, itinerary)
			accepted = true
			break
		}
		if !accepted && attempts < maxAttempts {
			l.Warn("Abandoned one generation slot", zap.Int("slot", slot))
		}
	}

	if len(results) < minResultsThreshold {
		l.Info("Returning fewer results than requested",
			zap.Int("count", len(results)),
			zap.Int("requested", minResultsThreshold),
		)
	}
	return results
}

// queryCannotGenerate reports errors that are a property of the query
// itself: no retry or variation will get past them.
func queryCannotGenerate(err error) bool {
	return errors.Is(err, models.ErrNoActivitiesFound) ||
		errors.Is(err, models.ErrMissingDates) ||
		errors.Is(err, models.ErrUnparseableDate)
}

// tooSimilar rejects a generated itinerary that would read as a duplicate of
// one already in the results: same trip name, or same start city with the
// same length, the same group range and nearly the same activity count.
func tooSimilar(candidate *models.FeaturedVacation, existing []models.FeaturedVacation) bool {
	for i := range existing {
		if similarItineraries(candidate, &existing[i]) {
			return true
		}
	}
	return false
}

func similarItineraries(a, b *models.FeaturedVacation) bool {
	if a.TripName == b.TripName {
		return true
	}

	countDiff := a.Days.CountActivities() - b.Days.CountActivities()
	if countDiff < 0 {
		countDiff = -countDiff
	}
	return strings.EqualFold(a.StartLocation.City, b.StartLocation.City) &&
		a.LengthDays == b.LengthDays &&
		a.MinGroup == b.MinGroup &&
		a.MaxGroup == b.MaxGroup &&
		countDiff <= 1
}

// withDefaultDates clones the query with a synthesized trip a week out.
func withDefaultDates(query *models.SearchQuery) *models.SearchQuery {
	now := time.Now().UTC()
	arrival := now.AddDate(0, 0, defaultTripLeadDays).Format("2006-01-02")
	departure := now.AddDate(0, 0, defaultTripLeadDays+defaultTripLengthDays).Format("2006-01-02")

	defaulted := *query
	defaulted.ArrivalDatetime = &arrival
	defaulted.DepartureDatetime = &departure
	return &defaulted
}

// persistAsync writes a generated itinerary back to the catalog without
// holding up the response. The write survives request cancellation but not
// forever.
func (s *ServiceImpl) persistAsync(ctx context.Context, itinerary *models.FeaturedVacation) {
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		persistCtx, cancel := context.WithTimeout(bgCtx, persistTimeout)
		defer cancel()

		if _, err := s.catalog.Insert(persistCtx, itinerary); err != nil {
			s.logger.Warn("Generated itinerary not persisted",
				zap.String("trip_name", itinerary.TripName),
				zap.Any("error", fmt.Errorf("%w: %w", models.ErrPersistenceFailed, err)),
			)
		}
	}()
}
