package itineraries

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
)

var _ LodgingRepository = (*LodgingRepositoryImpl)(nil)

// LodgingRepository resolves accommodation documents referenced from
// itinerary day items.
type LodgingRepository interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Accommodation, error)
}

type LodgingRepositoryImpl struct {
	logger     *zap.Logger
	collection *mongo.Collection
}

func NewLodgingRepositoryImpl(collection *mongo.Collection, logger *zap.Logger) *LodgingRepositoryImpl {
	return &LodgingRepositoryImpl{
		logger:     logger,
		collection: collection,
	}
}

func (r *LodgingRepositoryImpl) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Accommodation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("LodgingRepo").Start(ctx, "FindByIDs", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "find"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
		attribute.Int("lodging.requested", len(ids)),
	))
	defer span.End()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		r.logger.Error("Failed to fetch lodging", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB find failed")
		return nil, fmt.Errorf("database error fetching lodging: %w", err)
	}

	var accommodations []models.Accommodation
	if err := cursor.All(ctx, &accommodations); err != nil {
		r.logger.Error("Failed to decode lodging", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cursor decode failed")
		return nil, fmt.Errorf("database error decoding lodging: %w", err)
	}

	span.SetAttributes(attribute.Int("lodging.found", len(accommodations)))
	span.SetStatus(codes.Ok, "Lodging fetched")
	return accommodations, nil
}
