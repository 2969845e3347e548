package distance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
)

// coordTolerance is the matching window for cached coordinates, roughly
// ten meters of latitude.
const coordTolerance = 0.0001

var _ Repository = (*RepositoryImpl)(nil)

// Repository persists distance-matrix lookups so repeated routing runs do
// not re-query the matrix API for the same coordinate pairs.
type Repository interface {
	// FindFresh returns a non-expired cache entry matching the pair within
	// coordTolerance, or nil when there is no usable entry.
	FindFresh(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.CachedDistance, error)
	Insert(ctx context.Context, entry *models.CachedDistance) error
	DeleteExpired(ctx context.Context) (int64, error)
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

func (r *RepositoryImpl) FindFresh(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.CachedDistance, error) {
	ctx, span := otel.Tracer("DistanceRepo").Start(ctx, "FindFresh", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "findOne"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.String("travel.mode", string(mode)),
		attribute.Bool("travel.with_traffic", withTraffic),
	))
	defer span.End()

	filter := buildFreshFilter(origin, destination, mode, withTraffic, time.Now().UTC())

	var cached models.CachedDistance
	err := r.collection.FindOne(ctx, filter).Decode(&cached)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			span.SetStatus(codes.Ok, "Cache miss")
			return nil, nil
		}
		r.logger.Error("Failed to query distance cache", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB findOne failed")
		return nil, fmt.Errorf("database error querying distance cache: %w", err)
	}

	span.SetStatus(codes.Ok, "Cache hit")
	return &cached, nil
}

// buildFreshFilter matches entries whose four coordinates all fall within
// coordTolerance of the requested pair and whose TTL has not lapsed.
func buildFreshFilter(origin, destination Point, mode models.TravelMode, withTraffic bool, now time.Time) bson.M {
	return bson.M{
		"origin_lat": bson.M{
			"$gte": origin.Lat - coordTolerance,
			"$lte": origin.Lat + coordTolerance,
		},
		"origin_lng": bson.M{
			"$gte": origin.Lng - coordTolerance,
			"$lte": origin.Lng + coordTolerance,
		},
		"destination_lat": bson.M{
			"$gte": destination.Lat - coordTolerance,
			"$lte": destination.Lat + coordTolerance,
		},
		"destination_lng": bson.M{
			"$gte": destination.Lng - coordTolerance,
			"$lte": destination.Lng + coordTolerance,
		},
		"travel_mode":  string(mode),
		"with_traffic": withTraffic,
		"expires_at":   bson.M{"$gt": now},
	}
}

func (r *RepositoryImpl) Insert(ctx context.Context, entry *models.CachedDistance) error {
	ctx, span := otel.Tracer("DistanceRepo").Start(ctx, "Insert", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "insertOne"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
	))
	defer span.End()

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		r.logger.Error("Failed to insert distance cache entry", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insertOne failed")
		return fmt.Errorf("database error caching distance: %w", err)
	}

	span.SetStatus(codes.Ok, "Entry cached")
	return nil
}

func (r *RepositoryImpl) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("DistanceRepo").Start(ctx, "DeleteExpired", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "deleteMany"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
	))
	defer span.End()

	l := r.logger.With(zap.String("method", "DeleteExpired"))

	filter := bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		l.Error("Failed to delete expired distance cache entries", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB deleteMany failed")
		return 0, fmt.Errorf("database error cleaning distance cache: %w", err)
	}

	l.Info("Cleaned up expired distance cache entries", zap.Int64("deleted", result.DeletedCount))
	span.SetAttributes(attribute.Int64("db.deleted_count", result.DeletedCount))
	span.SetStatus(codes.Ok, "Expired entries removed")
	return result.DeletedCount, nil
}
