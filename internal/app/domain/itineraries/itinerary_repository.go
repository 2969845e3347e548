package itineraries

import (
	"context"
	"errors"
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

// Caps for the relaxed cascade tiers. The exact and partial tiers return
// everything they match.
const (
	locationTierLimit = 5
	flexibleTierLimit = 5

	maxListLimit = 100
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository reads and writes the itinerary catalog. The four Find* tier
// methods are pure reads with progressively relaxed filters; the cascade in
// the search service decides how they compose.
type Repository interface {
	// FindExact requires every criterion at once: start-or-end city among
	// the requested cities, every requested activity label present, lodging
	// entries present when lodging was requested, and the party inside the
	// group-size range.
	FindExact(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)

	// FindPartial keeps the location filter but accepts any single activity
	// label match.
	FindPartial(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)

	// FindByLocation filters on location and group size only, capped at 5.
	FindByLocation(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error)

	// FindFlexible collapses location and activity conditions into one OR
	// group, capped at limit. With no criteria at all it returns the most
	// recently created itineraries instead.
	FindFlexible(ctx context.Context, query *models.SearchQuery, limit int64) ([]models.FeaturedVacation, error)

	FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeaturedVacation, error)
	List(ctx context.Context, page, limit int64) ([]models.FeaturedVacation, error)
	Insert(ctx context.Context, itinerary *models.FeaturedVacation) (primitive.ObjectID, error)
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

func (r *RepositoryImpl) FindExact(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	return r.findTier(ctx, "FindExact", buildExactFilter(query), 0, nil)
}

func (r *RepositoryImpl) FindPartial(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	return r.findTier(ctx, "FindPartial", buildPartialFilter(query), 0, nil)
}

func (r *RepositoryImpl) FindByLocation(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	return r.findTier(ctx, "FindByLocation", buildLocationFilter(query), locationTierLimit, nil)
}

func (r *RepositoryImpl) FindFlexible(ctx context.Context, query *models.SearchQuery, limit int64) ([]models.FeaturedVacation, error) {
	if limit <= 0 || limit > flexibleTierLimit {
		limit = flexibleTierLimit
	}

	filter := buildFlexibleFilter(query)
	if filter == nil {
		// No criteria at all: hand back whatever was added most recently.
		return r.findTier(ctx, "FindFlexible", bson.M{}, limit, bson.D{{Key: "created_at", Value: -1}})
	}
	return r.findTier(ctx, "FindFlexible", filter, limit, nil)
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeaturedVacation, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "FindByID", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "findOne"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.String("itinerary.id", id.Hex()),
	))
	defer span.End()

	var itinerary models.FeaturedVacation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&itinerary)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			span.SetStatus(codes.Ok, "Itinerary not found")
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to fetch itinerary", zap.String("id", id.Hex()), zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB findOne failed")
		return nil, fmt.Errorf("database error fetching itinerary: %w", err)
	}

	span.SetStatus(codes.Ok, "Itinerary found")
	return &itinerary, nil
}

func (r *RepositoryImpl) List(ctx context.Context, page, limit int64) ([]models.FeaturedVacation, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "find"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.Int64("page", page),
		attribute.Int64("limit", limit),
	))
	defer span.End()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	itineraries, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list itineraries", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB find failed")
		return nil, fmt.Errorf("database error listing itineraries: %w", err)
	}

	span.SetAttributes(attribute.Int("itinerary.count", len(itineraries)))
	span.SetStatus(codes.Ok, "Itineraries listed")
	return itineraries, nil
}

func (r *RepositoryImpl) Insert(ctx context.Context, itinerary *models.FeaturedVacation) (primitive.ObjectID, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, "Insert", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "insertOne"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
	))
	defer span.End()

	result, err := r.collection.InsertOne(ctx, itinerary)
	if err != nil {
		r.logger.Error("Failed to insert itinerary",
			zap.String("trip_name", itinerary.TripName),
			zap.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insertOne failed")
		return primitive.NilObjectID, fmt.Errorf("database error inserting itinerary: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		span.SetStatus(codes.Error, "Unexpected inserted ID type")
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}

	span.SetAttributes(attribute.String("itinerary.id", id.Hex()))
	span.SetStatus(codes.Ok, "Itinerary inserted")
	return id, nil
}

func (r *RepositoryImpl) findTier(ctx context.Context, operation string, filter bson.M, limit int64, sort bson.D) ([]models.FeaturedVacation, error) {
	ctx, span := otel.Tracer("ItineraryRepo").Start(ctx, operation, trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "find"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
	))
	defer span.End()

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if sort != nil {
		opts.SetSort(sort)
	}

	itineraries, err := r.find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Tier query failed",
			zap.String("tier", operation),
			zap.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB find failed")
		return nil, fmt.Errorf("database error querying itineraries: %w", err)
	}

	span.SetAttributes(attribute.Int("itinerary.count", len(itineraries)))
	span.SetStatus(codes.Ok, "Tier query completed")
	return itineraries, nil
}

func (r *RepositoryImpl) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.FeaturedVacation, error) {
	start := time.Now()
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		appmetrics.Get().DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("collection", r.collection.Name()),
		))
		return nil, err
	}

	var itineraries []models.FeaturedVacation
	if err := cursor.All(ctx, &itineraries); err != nil {
		appmetrics.Get().DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("collection", r.collection.Name()),
		))
		return nil, err
	}

	appmetrics.Get().DBQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("collection", r.collection.Name()),
	))
	return itineraries, nil
}

// queryCities extracts the city part of each requested "City, State" string.
func queryCities(locations []string) []string {
	var cities []string
	for _, location := range locations {
		city := strings.TrimSpace(strings.Split(location, ",")[0])
		if city != "" {
			cities = append(cities, city)
		}
	}
	return cities
}

// locationConditions matches the requested cities against either endpoint.
func locationConditions(locations []string) []bson.M {
	cities := queryCities(locations)
	if len(cities) == 0 {
		return nil
	}

	patterns := make([]primitive.Regex, 0, len(cities))
	for _, city := range cities {
		patterns = append(patterns, primitive.Regex{Pattern: "^" + regexp.QuoteMeta(city) + "$", Options: "i"})
	}
	return []bson.M{
		{"start_location.city": bson.M{"$in": patterns}},
		{"end_location.city": bson.M{"$in": patterns}},
	}
}

// labelConditions builds one substring condition per requested activity
// against the itinerary's labeled activity summaries.
func labelConditions(activities []string) []bson.M {
	if len(activities) == 0 {
		return nil
	}

	conditions := make([]bson.M, 0, len(activities))
	for _, activity := range activities {
		conditions = append(conditions, bson.M{
			"activities": bson.M{
				"$elemMatch": bson.M{
					"label": bson.M{"$regex": regexp.QuoteMeta(strings.ToLower(activity)), "$options": "i"},
				},
			},
		})
	}
	return conditions
}

func applyGroupSize(filter bson.M, query *models.SearchQuery) {
	if total, ok := query.TotalPartySize(); ok {
		filter["min_group"] = bson.M{"$lte": total}
		filter["max_group"] = bson.M{"$gte": total}
	}
}

func buildExactFilter(query *models.SearchQuery) bson.M {
	filter := bson.M{}
	if conditions := locationConditions(query.Locations); conditions != nil {
		filter["$or"] = conditions
	}
	if conditions := labelConditions(query.Activities); conditions != nil {
		filter["$and"] = conditions
	}
	if len(query.Lodging) > 0 {
		filter["lodging"] = bson.M{"$exists": true, "$not": bson.M{"$size": 0}}
	}
	applyGroupSize(filter, query)
	return filter
}

func buildPartialFilter(query *models.SearchQuery) bson.M {
	var groups []bson.M
	if conditions := locationConditions(query.Locations); conditions != nil {
		groups = append(groups, bson.M{"$or": conditions})
	}
	if conditions := labelConditions(query.Activities); conditions != nil {
		groups = append(groups, bson.M{"$or": conditions})
	}

	switch len(groups) {
	case 0:
		return bson.M{}
	case 1:
		return groups[0]
	default:
		return bson.M{"$and": groups}
	}
}

func buildLocationFilter(query *models.SearchQuery) bson.M {
	filter := bson.M{}
	if conditions := locationConditions(query.Locations); conditions != nil {
		filter["$or"] = conditions
	}
	applyGroupSize(filter, query)
	return filter
}

// buildFlexibleFilter returns nil when the query carries no usable criteria,
// which switches the flexible tier to its most-recent fallback.
func buildFlexibleFilter(query *models.SearchQuery) bson.M {
	var conditions []bson.M
	conditions = append(conditions, locationConditions(query.Locations)...)
	conditions = append(conditions, labelConditions(query.Activities)...)
	if len(conditions) == 0 {
		return nil
	}
	return bson.M{"$or": conditions}
}
