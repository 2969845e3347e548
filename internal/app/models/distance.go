package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TravelMode selects how travel time between points is estimated.
type TravelMode string

const (
	ModeDriving   TravelMode = "driving"
	ModeWalking   TravelMode = "walking"
	ModeTransit   TravelMode = "transit"
	ModeBicycling TravelMode = "bicycling"
)

// CachedDistance is a persisted distance-matrix lookup. Entries are matched
// by coordinate proximity rather than exact equality and expire on a TTL.
type CachedDistance struct {
	ID                       *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	OriginLat                float64             `json:"origin_lat" bson:"origin_lat"`
	OriginLng                float64             `json:"origin_lng" bson:"origin_lng"`
	DestinationLat           float64             `json:"destination_lat" bson:"destination_lat"`
	DestinationLng           float64             `json:"destination_lng" bson:"destination_lng"`
	DistanceMeters           int                 `json:"distance_meters" bson:"distance_meters"`
	DurationSeconds          int                 `json:"duration_seconds" bson:"duration_seconds"`
	DurationInTrafficSeconds *int                `json:"duration_in_traffic_seconds,omitempty" bson:"duration_in_traffic_seconds,omitempty"`
	TravelMode               string              `json:"travel_mode" bson:"travel_mode"`
	WithTraffic              bool                `json:"with_traffic" bson:"with_traffic"`
	CachedAt                 time.Time           `json:"cached_at" bson:"cached_at"`
	ExpiresAt                time.Time           `json:"expires_at" bson:"expires_at"`
}

// DistanceResult is the answer handed back to callers of the distance
// service, whether served from cache or from the matrix API.
type DistanceResult struct {
	DistanceMeters           int  `json:"distance_meters"`
	DurationMinutes          int  `json:"duration_minutes"`
	DurationInTrafficMinutes *int `json:"duration_in_traffic_minutes,omitempty"`
	FromCache                bool `json:"from_cache"`
}

// BestDurationMinutes prefers the traffic-aware estimate when present.
func (r DistanceResult) BestDurationMinutes() int {
	if r.DurationInTrafficMinutes != nil {
		return *r.DurationInTrafficMinutes
	}
	return r.DurationMinutes
}
