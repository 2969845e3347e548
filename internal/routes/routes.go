package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/domain/activities"
	"github.com/cairntrips/cairn/internal/app/domain/discovery"
	"github.com/cairntrips/cairn/internal/app/domain/distance"
	"github.com/cairntrips/cairn/internal/app/domain/generation"
	"github.com/cairntrips/cairn/internal/app/domain/itineraries"
	"github.com/cairntrips/cairn/internal/app/domain/media"
	"github.com/cairntrips/cairn/internal/app/domain/routing"
	"github.com/cairntrips/cairn/internal/app/domain/scoring"
	"github.com/cairntrips/cairn/internal/app/domain/search"
	database "github.com/cairntrips/cairn/internal/db"
	"github.com/cairntrips/cairn/internal/pkg/cache"
	"github.com/cairntrips/cairn/internal/pkg/config"
)

const (
	healthPingTimeout = 2 * time.Second

	cacheCleanupInterval = time.Hour
	cacheCleanupTimeout  = 30 * time.Second
)

type AppHandlers struct {
	Itineraries *itineraries.Handler
}

func Setup(r *gin.Engine, client *mongo.Client, collections *database.Collections, cfg *config.Config, log *zap.Logger) {
	handlers, distanceService := setupDependencies(collections, cfg, log)
	startCacheJanitor(distanceService, log)
	setupRouter(r, client, handlers, log)
}

func setupDependencies(collections *database.Collections, cfg *config.Config, log *zap.Logger) (*AppHandlers, distance.Service) {
	// Repositories
	itineraryRepo := itineraries.NewRepositoryImpl(collections.Itineraries, log)
	activityRepo := activities.NewRepositoryImpl(collections.Activities, log)
	lodgingRepo := itineraries.NewLodgingRepositoryImpl(collections.Lodging, log)
	submissionRepo := itineraries.NewSubmissionRepositoryImpl(collections.Submissions, log)
	distanceRepo := distance.NewRepositoryImpl(collections.DistanceCache, log)

	// Distance lookups degrade to straight-line estimates without an API key.
	var matrix distance.Matrix
	if client, err := distance.NewMatrixClient(cfg.Routing.GoogleMapsAPIKey, log); err != nil {
		log.Warn("Distance matrix disabled, routing will use straight-line estimates", zap.Any("error", err))
	} else {
		matrix = client
	}
	distanceService := distance.NewServiceImpl(distanceRepo, matrix, log)
	routeService := routing.NewServiceImpl(distanceService, log)

	// Semantic activity search is optional; the generator falls back to the
	// catalog when it is absent.
	var discoveryService discovery.Service
	if svc, err := discovery.NewServiceImpl(cfg.Discovery, log); err != nil {
		log.Warn("Semantic activity search disabled", zap.Any("error", err))
	} else {
		discoveryService = svc
	}

	cacheManager := cache.NewCacheManager(log)
	mediaService := media.NewServiceImpl(cfg.Media.ItineraryBucket, cfg.Media.ActivityBucket, cacheManager, log)

	// Services
	scoringService := scoring.NewServiceImpl(cfg.Search.Weights, activityRepo, log)
	generationService := generation.NewServiceImpl(activityRepo, discoveryService, routeService, cacheManager, log)
	searchService := search.NewServiceImpl(itineraryRepo, scoringService, generationService, log)
	itineraryService := itineraries.NewServiceImpl(itineraryRepo, lodgingRepo, activityRepo, mediaService, log)

	handlers := &AppHandlers{
		Itineraries: itineraries.NewHandler(
			itineraryService,
			searchService,
			scoringService,
			mediaService,
			submissionRepo,
			cfg.Search,
			log,
		),
	}
	return handlers, distanceService
}

func setupRouter(r *gin.Engine, client *mongo.Client, h *AppHandlers, log *zap.Logger) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			log.Warn("Health check failed", zap.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		itinerariesGroup := api.Group("/itineraries")
		{
			itinerariesGroup.GET("", h.Itineraries.GetAll)
			itinerariesGroup.GET("/:id", h.Itineraries.GetByID)
			itinerariesGroup.GET("/:id/pricing", h.Itineraries.GetPricing)
			itinerariesGroup.POST("/search", h.Itineraries.Search)
			itinerariesGroup.POST("/search-or-generate", h.Itineraries.SearchOrGenerate)
		}
	}
}

// startCacheJanitor deletes expired distance-cache entries on a timer.
func startCacheJanitor(distances distance.Service, log *zap.Logger) {
	go func() {
		ticker := time.NewTicker(cacheCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), cacheCleanupTimeout)
			removed, err := distances.CleanupExpired(ctx)
			cancel()
			if err != nil {
				log.Warn("Distance cache cleanup failed", zap.Any("error", err))
				continue
			}
			if removed > 0 {
				log.Info("Distance cache cleaned", zap.Int64("removed", removed))
			}
		}
	}()
}
