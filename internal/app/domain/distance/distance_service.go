package distance

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
	appmetrics "github.com/cairntrips/cairn/internal/observability/metrics"
)

const (
	// Static routes keep for a day; traffic-aware results go stale quickly.
	cacheTTLStatic  = 24 * time.Hour
	cacheTTLTraffic = time.Hour

	earthRadiusMiles = 3959.0
	metersPerMile    = 1609.34

	// Rough driving estimate used when the matrix API is unavailable.
	fallbackMinutesPerMile = 2.0
)

var _ Service = (*ServiceImpl)(nil)

// Service answers travel-distance questions, preferring cached matrix
// lookups, then the live API, then a haversine estimate. Callers always get
// an answer; only infrastructure failures surface as errors.
type Service interface {
	GetDistance(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.DistanceResult, error)
	GetDistancesBatch(ctx context.Context, origins, destinations []Point, mode models.TravelMode, withTraffic bool) ([][]models.DistanceResult, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	matrix Matrix
}

// NewServiceImpl wires the distance service. A nil matrix client means no
// API key is configured; every miss then falls back to estimates.
func NewServiceImpl(repo Repository, matrix Matrix, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		matrix: matrix,
	}
}

// haversineMiles computes the great-circle distance between two points.
func haversineMiles(origin, destination Point) float64 {
	lat1 := origin.Lat * math.Pi / 180
	lat2 := destination.Lat * math.Pi / 180
	dLat := (destination.Lat - origin.Lat) * math.Pi / 180
	dLng := (destination.Lng - origin.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// Estimate derives a distance result from straight-line geometry, assuming
// roughly two minutes per road mile.
func Estimate(origin, destination Point) models.DistanceResult {
	miles := haversineMiles(origin, destination)
	return models.DistanceResult{
		DistanceMeters:  int(miles * metersPerMile),
		DurationMinutes: int(miles * fallbackMinutesPerMile),
		FromCache:       false,
	}
}

func cacheEntry(origin, destination Point, mode models.TravelMode, withTraffic bool, result *models.DistanceResult) *models.CachedDistance {
	now := time.Now().UTC()
	ttl := cacheTTLStatic
	if withTraffic {
		ttl = cacheTTLTraffic
	}

	entry := &models.CachedDistance{
		OriginLat:       origin.Lat,
		OriginLng:       origin.Lng,
		DestinationLat:  destination.Lat,
		DestinationLng:  destination.Lng,
		DistanceMeters:  result.DistanceMeters,
		DurationSeconds: result.DurationMinutes * 60,
		TravelMode:      string(mode),
		WithTraffic:     withTraffic,
		CachedAt:        now,
		ExpiresAt:       now.Add(ttl),
	}
	if result.DurationInTrafficMinutes != nil {
		seconds := *result.DurationInTrafficMinutes * 60
		entry.DurationInTrafficSeconds = &seconds
	}
	return entry
}

func resultFromCache(cached *models.CachedDistance) *models.DistanceResult {
	result := &models.DistanceResult{
		DistanceMeters:  cached.DistanceMeters,
		DurationMinutes: cached.DurationSeconds / 60,
		FromCache:       true,
	}
	if cached.DurationInTrafficSeconds != nil {
		minutes := *cached.DurationInTrafficSeconds / 60
		result.DurationInTrafficMinutes = &minutes
	}
	return result
}

func (s *ServiceImpl) GetDistance(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.DistanceResult, error) {
	ctx, span := otel.Tracer("DistanceService").Start(ctx, "GetDistance", trace.WithAttributes(
		attribute.String("travel.mode", string(mode)),
		attribute.Bool("travel.with_traffic", withTraffic),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetDistance"))

	cached, err := s.repo.FindFresh(ctx, origin, destination, mode, withTraffic)
	if err != nil {
		// Cache trouble is not fatal; fall through to the API.
		l.Warn("Distance cache lookup failed", zap.Any("error", err))
		span.RecordError(err)
	}
	if cached != nil {
		appmetrics.Get().DistanceCacheHitsTotal.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		span.SetStatus(codes.Ok, "Served from cache")
		return resultFromCache(cached), nil
	}

	appmetrics.Get().DistanceCacheMissesTotal.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	if s.matrix == nil {
		estimate := Estimate(origin, destination)
		span.SetStatus(codes.Ok, "Estimated without matrix API")
		return &estimate, nil
	}

	result, err := s.matrix.FetchDistance(ctx, origin, destination, mode, withTraffic)
	if err != nil {
		l.Warn("Matrix API failed, falling back to estimate", zap.Any("error", err))
		span.RecordError(err)
		estimate := Estimate(origin, destination)
		span.SetStatus(codes.Ok, "Estimated after matrix failure")
		return &estimate, nil
	}

	// Best-effort write; a failed cache insert never fails the lookup.
	if err := s.repo.Insert(ctx, cacheEntry(origin, destination, mode, withTraffic, result)); err != nil {
		l.Warn("Failed to cache distance result", zap.Any("error", err))
	}

	span.SetStatus(codes.Ok, "Distance fetched")
	return result, nil
}

func (s *ServiceImpl) GetDistancesBatch(ctx context.Context, origins, destinations []Point, mode models.TravelMode, withTraffic bool) ([][]models.DistanceResult, error) {
	ctx, span := otel.Tracer("DistanceService").Start(ctx, "GetDistancesBatch", trace.WithAttributes(
		attribute.Int("batch.origins", len(origins)),
		attribute.Int("batch.destinations", len(destinations)),
		attribute.String("travel.mode", string(mode)),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "GetDistancesBatch"))

	results := make([][]models.DistanceResult, len(origins))
	filled := make([][]bool, len(origins))
	missing := 0
	for i := range origins {
		results[i] = make([]models.DistanceResult, len(destinations))
		filled[i] = make([]bool, len(destinations))
		for j := range destinations {
			cached, err := s.repo.FindFresh(ctx, origins[i], destinations[j], mode, withTraffic)
			if err != nil {
				l.Warn("Distance cache lookup failed", zap.Any("error", err))
				span.RecordError(err)
			}
			if cached != nil {
				appmetrics.Get().DistanceCacheHitsTotal.Add(ctx, 1)
				results[i][j] = *resultFromCache(cached)
				filled[i][j] = true
			} else {
				appmetrics.Get().DistanceCacheMissesTotal.Add(ctx, 1)
				missing++
			}
		}
	}

	if missing > 0 && s.matrix != nil &&
		len(origins) <= maxMatrixOrigins && len(destinations) <= maxMatrixDestinations {
		l.Debug("Fetching matrix for missing distance pairs", zap.Int("missing", missing))
		fetched, err := s.matrix.FetchMatrix(ctx, origins, destinations, mode, withTraffic)
		if err != nil {
			l.Warn("Batch matrix fetch failed, estimating remaining pairs", zap.Any("error", err))
			span.RecordError(err)
		} else {
			for i := range origins {
				for j := range destinations {
					if filled[i][j] {
						continue
					}
					results[i][j] = fetched[i][j]
					filled[i][j] = true
					if err := s.repo.Insert(ctx, cacheEntry(origins[i], destinations[j], mode, withTraffic, &fetched[i][j])); err != nil {
						l.Warn("Failed to cache batch distance result", zap.Any("error", err))
					}
				}
			}
		}
	}

	// Whatever is still unfilled gets a geometric estimate.
	for i := range origins {
		for j := range destinations {
			if !filled[i][j] {
				results[i][j] = Estimate(origins[i], destinations[j])
			}
		}
	}

	span.SetStatus(codes.Ok, "Batch distances resolved")
	return results, nil
}

func (s *ServiceImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("DistanceService").Start(ctx, "CleanupExpired")
	defer span.End()

	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cleanup failed")
		return 0, fmt.Errorf("error cleaning expired distance cache: %w", err)
	}

	span.SetAttributes(attribute.Int64("cache.deleted", deleted))
	span.SetStatus(codes.Ok, "Cleanup complete")
	return deleted, nil
}
