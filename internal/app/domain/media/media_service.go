package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cairntrips/cairn/internal/app/models"
	"github.com/cairntrips/cairn/internal/pkg/cache"
)

const (
	storageBaseURL = "https://storage.googleapis.com"

	// Bucket listings for many itineraries run concurrently per request.
	attachConcurrency = 8
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

var _ Service = (*ServiceImpl)(nil)

// Service resolves image URLs for itineraries and activities from cloud
// storage buckets. Lookups are best effort: storage failures degrade to empty
// image lists and never fail the calling request.
type Service interface {
	// AttachImages fills Images on every itinerary, concurrently. Itineraries
	// whose listing fails come back with an empty image list.
	AttachImages(ctx context.Context, itineraries []models.FeaturedVacation) []models.FeaturedVacation

	// ItineraryImages lists the image URLs stored under the itinerary's ID.
	ItineraryImages(ctx context.Context, itineraryID string) []string

	// ActivityImages lists the image URLs stored under the activity's ID.
	// Returns nil when no activity bucket is configured.
	ActivityImages(ctx context.Context, activityID string) []string
}

type ServiceImpl struct {
	logger          *zap.Logger
	client          *http.Client
	cache           *cache.CacheManager
	baseURL         string
	itineraryBucket string
	activityBucket  string
}

func NewServiceImpl(itineraryBucket, activityBucket string, cacheManager *cache.CacheManager, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:          logger,
		client:          &http.Client{Timeout: 10 * time.Second},
		cache:           cacheManager,
		baseURL:         storageBaseURL,
		itineraryBucket: itineraryBucket,
		activityBucket:  activityBucket,
	}
}

type storageObject struct {
	Name string `json:"name"`
}

type storageListResponse struct {
	Items         []storageObject `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
}

// listImages lists the bucket under the given prefix and keeps objects with
// image extensions, returning their public URLs.
func (s *ServiceImpl) listImages(ctx context.Context, bucket, prefix string) ([]string, error) {
	q := url.Values{}
	q.Set("prefix", prefix)

	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", s.baseURL, bucket, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building storage list request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error listing storage objects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage API returned HTTP %d: %w", resp.StatusCode, models.ErrDependencyUnavailable)
	}

	var parsed storageListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("error decoding storage list response: %w", err)
	}

	images := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if !hasImageExtension(item.Name) {
			continue
		}
		images = append(images, fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, item.Name))
	}
	return images, nil
}

func hasImageExtension(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (s *ServiceImpl) ItineraryImages(ctx context.Context, itineraryID string) []string {
	if cached, ok := s.cache.ItineraryImages.Get(itineraryID); ok {
		return cached
	}

	ctx, span := otel.Tracer("MediaService").Start(ctx, "ItineraryImages", trace.WithAttributes(
		attribute.String("itinerary.id", itineraryID),
		attribute.String("storage.bucket", s.itineraryBucket),
	))
	defer span.End()

	images, err := s.listImages(ctx, s.itineraryBucket, itineraryID)
	if err != nil {
		s.logger.Warn("Itinerary image listing failed",
			zap.String("itinerary_id", itineraryID),
			zap.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Storage listing failed")
		return []string{}
	}

	s.cache.ItineraryImages.Set(itineraryID, images)
	span.SetAttributes(attribute.Int("image.count", len(images)))
	span.SetStatus(codes.Ok, "Images listed")
	return images
}

func (s *ServiceImpl) ActivityImages(ctx context.Context, activityID string) []string {
	if s.activityBucket == "" {
		return nil
	}
	if cached, ok := s.cache.ActivityImages.Get(activityID); ok {
		return cached
	}

	ctx, span := otel.Tracer("MediaService").Start(ctx, "ActivityImages", trace.WithAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("storage.bucket", s.activityBucket),
	))
	defer span.End()

	images, err := s.listImages(ctx, s.activityBucket, activityID)
	if err != nil {
		s.logger.Warn("Activity image listing failed",
			zap.String("activity_id", activityID),
			zap.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Storage listing failed")
		return []string{}
	}

	s.cache.ActivityImages.Set(activityID, images)
	span.SetAttributes(attribute.Int("image.count", len(images)))
	span.SetStatus(codes.Ok, "Images listed")
	return images
}

func (s *ServiceImpl) AttachImages(ctx context.Context, itineraries []models.FeaturedVacation) []models.FeaturedVacation {
	if len(itineraries) == 0 {
		return itineraries
	}

	ctx, span := otel.Tracer("MediaService").Start(ctx, "AttachImages", trace.WithAttributes(
		attribute.Int("itinerary.count", len(itineraries)),
	))
	defer span.End()

	processed := make([]models.FeaturedVacation, len(itineraries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachConcurrency)

	for i := range itineraries {
		g.Go(func() error {
			itinerary := itineraries[i]
			id := primitive.NewObjectID()
			if itinerary.ID != nil {
				id = *itinerary.ID
			}
			itinerary.Images = s.ItineraryImages(gctx, id.Hex())
			processed[i] = itinerary
			return nil
		})
	}

	// Workers only record failures per itinerary, so the group never errors.
	_ = g.Wait()

	span.SetStatus(codes.Ok, "Images attached")
	return processed
}
