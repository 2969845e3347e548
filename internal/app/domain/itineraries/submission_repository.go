package itineraries

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
)

var _ SubmissionRepository = (*SubmissionRepositoryImpl)(nil)

// SubmissionRepository persists the search submissions logged alongside
// search requests.
type SubmissionRepository interface {
	Insert(ctx context.Context, submission *models.SearchSubmission) error
}

type SubmissionRepositoryImpl struct {
	logger     *zap.Logger
	collection *mongo.Collection
}

func NewSubmissionRepositoryImpl(collection *mongo.Collection, logger *zap.Logger) *SubmissionRepositoryImpl {
	return &SubmissionRepositoryImpl{
		logger:     logger,
		collection: collection,
	}
}

func (r *SubmissionRepositoryImpl) Insert(ctx context.Context, submission *models.SearchSubmission) error {
	ctx, span := otel.Tracer("SubmissionRepo").Start(ctx, "Insert", trace.WithAttributes(
		semconv.DBSystemMongoDB,
		attribute.String("db.operation", "insertOne"),
		attribute.String("db.mongodb.collection", r.collection.Name()),
	))
	defer span.End()

	if _, err := r.collection.InsertOne(ctx, submission); err != nil {
		r.logger.Error("Failed to log search submission", zap.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB insertOne failed")
		return fmt.Errorf("database error logging submission: %w", err)
	}

	span.SetStatus(codes.Ok, "Submission logged")
	return nil
}
