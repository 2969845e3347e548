package activities

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
	appmetrics "github.com/cairntrips/cairn/internal/observability/metrics"
)

// Result caps for the relaxed candidate tiers. The exact tier is uncapped
// because its filter is already the narrowest.
const (
	partialTierLimit  = 15
	cityTierLimit     = 10
	fallbackTierLimit = 10
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository reads the activity catalog.
type Repository interface {
	// FindByIDs resolves the catalog activities referenced by itinerary day
	// items. Unknown IDs are silently absent from the result.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Activity, error)

	// FindCandidates runs the tiered candidate fetch for generation: every
	// term matching with synonyms, then any term matching, then city-only,
	// then any activity at all. The first non-empty tier wins. A tier whose
	// read fails is logged and skipped rather than failing the fetch.
	FindCandidates(ctx context.Context, cities, terms []string) ([]models.Activity, error)
}

type RepositoryImpl struct {
	logger     *zap.Logger
	collection *mongo.Collection
}

func NewRepositoryImpl(collection *mongo.Collection, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger:     logger,
		collection: collection,
	}
}

func (r *RepositoryImpl) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Activity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "FindByIDs", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "find"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.Int("activity.id_count", len(ids)),
	))
	defer span.End()

	activities, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, 0)
	if err != nil {
		r.logger.Error("Failed to resolve activities by ID", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB find failed")
		return nil, fmt.Errorf("database error resolving activities: %w", err)
	}

	span.SetAttributes(attribute.Int("activity.resolved_count", len(activities)))
	span.SetStatus(codes.Ok, "Activities resolved")
	return activities, nil
}

func (r *RepositoryImpl) FindCandidates(ctx context.Context, cities, terms []string) ([]models.Activity, error) {
	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "FindCandidates", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.StringSlice("activity.cities", cities),
		attribute.StringSlice("activity.terms", terms),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "FindCandidates"))

	tiers := []struct {
		name   string
		filter bson.M
		limit  int64
	}{
		{"exact", buildEveryTermFilter(cities, terms), 0},
		{"partial", buildAnyTermFilter(cities, terms), partialTierLimit},
		{"city", buildCityFilter(cities), cityTierLimit},
		{"any", bson.M{}, fallbackTierLimit},
	}

	var lastErr error
	for _, tier := range tiers {
		activities, err := r.find(ctx, tier.filter, tier.limit)
		if err != nil {
			l.Warn("Candidate tier read failed, trying next tier",
				zap.String("tier", tier.name),
				zap.Any("error", err),
			)
			span.RecordError(err)
			lastErr = err
			continue
		}
		if len(activities) > 0 {
			l.Debug("Candidate tier matched",
				zap.String("tier", tier.name),
				zap.Int("count", len(activities)),
			)
			span.SetAttributes(
				attribute.String("activity.tier", tier.name),
				attribute.Int("activity.candidate_count", len(activities)),
			)
			span.SetStatus(codes.Ok, "Candidates found")
			return activities, nil
		}
	}

	if lastErr != nil {
		span.SetStatus(codes.Error, "All candidate tiers failed")
		return nil, fmt.Errorf("database error fetching activity candidates: %w", lastErr)
	}

	span.SetStatus(codes.Ok, "No candidates")
	return nil, nil
}

func (r *RepositoryImpl) find(ctx context.Context, filter bson.M, limit int64) ([]models.Activity, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}

	start := time.Now()
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		appmetrics.Get().DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("collection", r.collection.Name()),
		))
		return nil, err
	}

	var activities []models.Activity
	if err := cursor.All(ctx, &activities); err != nil {
		appmetrics.Get().DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("collection", r.collection.Name()),
		))
		return nil, err
	}

	appmetrics.Get().DBQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("collection", r.collection.Name()),
	))
	return activities, nil
}

// termRegexes turns expanded search terms into catalog regex patterns.
// Spaces inside a term become wildcards so "hot springs" also matches
// "hot mineral springs".
func termRegexes(terms []string) []primitive.Regex {
	patterns := make([]primitive.Regex, 0, len(terms))
	for _, term := range terms {
		patterns = append(patterns, primitive.Regex{
			Pattern: ".*" + strings.ReplaceAll(regexp.QuoteMeta(term), " ", ".*") + ".*",
			Options: "i",
		})
	}
	return patterns
}

// textFieldMatch builds the OR across the four searchable activity fields.
func textFieldMatch(patterns []primitive.Regex) []bson.M {
	return []bson.M{
		{"activity_types": bson.M{"$in": patterns}},
		{"tags": bson.M{"$in": patterns}},
		{"title": bson.M{"$in": patterns}},
		{"description": bson.M{"$in": patterns}},
	}
}

// buildEveryTermFilter requires each requested term (or one of its synonyms)
// to match somewhere on the activity.
func buildEveryTermFilter(cities, terms []string) bson.M {
	filter := buildCityFilter(cities)
	if len(terms) == 0 {
		return filter
	}

	conditions := make([]bson.M, 0, len(terms))
	for _, term := range terms {
		patterns := termRegexes(ExpandTerm(term))
		conditions = append(conditions, bson.M{"$or": textFieldMatch(patterns)})
	}
	filter["$and"] = conditions
	return filter
}

// buildAnyTermFilter accepts a match on any requested term or synonym.
func buildAnyTermFilter(cities, terms []string) bson.M {
	filter := buildCityFilter(cities)
	if len(terms) == 0 {
		return filter
	}

	var expanded []string
	for _, term := range terms {
		expanded = append(expanded, ExpandTerm(term)...)
	}
	filter["$or"] = textFieldMatch(termRegexes(expanded))
	return filter
}

func buildCityFilter(cities []string) bson.M {
	if len(cities) == 0 {
		return bson.M{}
	}
	return bson.M{"address.city": bson.M{"$in": cityRegexes(cities)}}
}

// cityRegexes matches city names exactly but case-insensitively, so
// "denver" finds catalog entries stored as "Denver".
func cityRegexes(cities []string) []primitive.Regex {
	patterns := make([]primitive.Regex, 0, len(cities))
	for _, city := range cities {
		patterns = append(patterns, primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(strings.TrimSpace(city)) + "$",
			Options: "i",
		})
	}
	return patterns
}
