package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
)

// CacheManager holds all application caches
type CacheManager struct {
	// Catalog activities keyed by the requested cities and activity terms
	Activities *UnifiedCache[[]models.Activity]

	// Image URL lists keyed by itinerary or activity ID
	ItineraryImages *UnifiedCache[[]string]
	ActivityImages  *UnifiedCache[[]string]
}

// NewCacheManager creates a new cache manager with default TTLs
func NewCacheManager(logger *zap.Logger) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheManager{
		// Catalog lookups back the generator's tiered fetch (5 minutes)
		Activities: NewUnifiedCache[[]models.Activity](5*time.Minute, "activities", logger),

		// Bucket listings change rarely (10 minutes)
		ItineraryImages: NewUnifiedCache[[]string](10*time.Minute, "itinerary_images", logger),
		ActivityImages:  NewUnifiedCache[[]string](10*time.Minute, "activity_images", logger),
	}
}

// GetAllMetrics returns metrics for all caches
func (cm *CacheManager) GetAllMetrics() map[string]CacheMetrics {
	return map[string]CacheMetrics{
		"activities":       cm.Activities.GetMetrics(),
		"itinerary_images": cm.ItineraryImages.GetMetrics(),
		"activity_images":  cm.ActivityImages.GetMetrics(),
	}
}

// ClearAll clears all caches
func (cm *CacheManager) ClearAll() {
	cm.Activities.Clear()
	cm.ItineraryImages.Clear()
	cm.ActivityImages.Clear()
}
