package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	database "github.com/cairntrips/cairn/internal/db"
	"github.com/cairntrips/cairn/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg         *config.Config
	logger      *zap.Logger
	client      *mongo.Client
	collections *database.Collections
	router      http.Handler
}

// New creates a new Server instance with all dependencies
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	ctx := context.Background()
	if err := s.setupDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	return s, nil
}

// setupDatabase connects to MongoDB, resolves collection handles and ensures
// the indexes the query paths rely on.
func (s *Server) setupDatabase(ctx context.Context) error {
	s.logger.Info("Setting up database connection")

	client, err := database.Init(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database client: %w", err)
	}

	if !database.WaitForDB(ctx, client, s.logger) {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("database did not become available")
	}

	collections := database.NewCollections(client, s.cfg.Repositories.Mongo.DB)
	if err := database.EnsureIndexes(ctx, collections, s.logger); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	s.client = client
	s.collections = collections
	s.logger.Info("Database setup completed successfully",
		zap.String("database", s.cfg.Repositories.Mongo.DB))
	return nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// Collections returns the resolved MongoDB collection handles
func (s *Server) Collections() *database.Collections {
	return s.collections
}

// Client returns the MongoDB client
func (s *Server) Client() *mongo.Client {
	return s.client
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.Disconnect(ctx); err != nil {
			s.logger.Warn("Failed to disconnect MongoDB client", zap.Error(err))
		}
	}
}
