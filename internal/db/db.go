// Package database owns the MongoDB client lifecycle and collection handles.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/pkg/config"
)

const defaultRetries = 5

// Collections bundles the handles the application reads and writes.
type Collections struct {
	Itineraries   *mongo.Collection
	Activities    *mongo.Collection
	Lodging       *mongo.Collection
	DistanceCache *mongo.Collection
	Submissions   *mongo.Collection
}

// maskURI hides credentials embedded in a MongoDB URI for safe logging.
func maskURI(uri string) string {
	at := strings.Index(uri, "@")
	scheme := strings.Index(uri, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return uri
	}
	credentials := uri[scheme+3 : at]
	if !strings.Contains(credentials, ":") {
		return uri
	}
	return uri[:scheme+3] + "***:***" + uri[at:]
}

// Init connects to MongoDB with conservative pool and timeout settings.
func Init(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*mongo.Client, error) {
	uri := cfg.Repositories.Mongo.URI
	logger.Info("Connecting to MongoDB", zap.String("uri", maskURI(uri)))

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("Failed to create MongoDB client", zap.Error(err))
		return nil, fmt.Errorf("failed connecting to mongodb: %w", err)
	}

	logger.Info("MongoDB client initialized")
	return client, nil
}

// WaitForDB waits for the database connection to be available.
func WaitForDB(ctx context.Context, client *mongo.Client, logger *zap.Logger) bool {
	maxAttempts := defaultRetries
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := client.Ping(ctx, nil)
		if err == nil {
			logger.Info("Database connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * 200 * time.Millisecond
		logger.Warn("Database ping failed, retrying...",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait_duration", waitDuration),
			zap.Error(err),
		)
		// Don't wait after the last attempt
		if attempts < maxAttempts {
			time.Sleep(waitDuration)
		}
	}
	logger.Error("Database connection failed after multiple retries")
	return false
}

// NewCollections resolves the application's collection handles.
func NewCollections(client *mongo.Client, dbName string) *Collections {
	db := client.Database(dbName)
	return &Collections{
		Itineraries:   db.Collection("itineraries"),
		Activities:    db.Collection("activities"),
		Lodging:       db.Collection("lodging"),
		DistanceCache: db.Collection("distance_cache"),
		Submissions:   db.Collection("search_submissions"),
	}
}

// EnsureIndexes creates the indexes the hot query paths rely on. Index
// creation is idempotent, so this runs on every boot.
func EnsureIndexes(ctx context.Context, c *Collections, logger *zap.Logger) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{
			coll: c.Itineraries,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "trip_name", Value: 1}}},
				{Keys: bson.D{
					{Key: "start_location.city", Value: 1},
					{Key: "start_location.state", Value: 1},
				}},
				{Keys: bson.D{{Key: "created_at", Value: -1}}},
			},
		},
		{
			coll: c.Activities,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "address.city", Value: 1}}},
				{Keys: bson.D{{Key: "activity_types", Value: 1}}},
			},
		},
		{
			coll: c.DistanceCache,
			models: []mongo.IndexModel{
				{Keys: bson.D{
					{Key: "origin_lat", Value: 1},
					{Key: "origin_lng", Value: 1},
					{Key: "destination_lat", Value: 1},
					{Key: "destination_lng", Value: 1},
					{Key: "travel_mode", Value: 1},
					{Key: "with_traffic", Value: 1},
				}},
				{Keys: bson.D{{Key: "expires_at", Value: 1}}},
			},
		},
		{
			coll: c.Submissions,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "created_at", Value: -1}}},
			},
		},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			logger.Error("Failed to create indexes",
				zap.String("collection", idx.coll.Name()),
				zap.Error(err),
			)
			return fmt.Errorf("failed creating indexes for %s: %w", idx.coll.Name(), err)
		}
	}

	logger.Info("Database indexes ensured")
	return nil
}
