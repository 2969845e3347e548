package config

import (
	"os"
	"strconv"

	"github.com/cairntrips/cairn/internal/app/models"
)

type MongoConfig struct {
	URI string
	DB  string
}

type RepositoriesConfig struct {
	Mongo MongoConfig
}

type SearchConfig struct {
	Weights models.SearchWeights
	// MinResults is the floor below which /search triggers generation.
	MinResults int
	// MinGenerateResults is the same floor for /search-or-generate.
	MinGenerateResults int
}

type RoutingConfig struct {
	// GoogleMapsAPIKey enables the distance matrix integration. Empty means
	// travel times fall back to straight-line estimates.
	GoogleMapsAPIKey string
}

type DiscoveryConfig struct {
	ProjectID     string
	Location      string
	DataStoreID   string
	ServingConfig string
	AccessToken   string
}

type MediaConfig struct {
	ItineraryBucket string
	ActivityBucket  string
}

type Config struct {
	Repositories RepositoriesConfig
	Search       SearchConfig
	Routing      RoutingConfig
	Discovery    DiscoveryConfig
	Media        MediaConfig
	ServerPort   string
}

func Load() (*Config, error) {
	defaults := models.DefaultSearchWeights()

	cfg := &Config{
		Repositories: RepositoriesConfig{
			Mongo: MongoConfig{
				URI: getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
				DB:  getEnvOrDefault("MONGODB_DB", "cairn"),
			},
		},
		Search: SearchConfig{
			Weights: models.SearchWeights{
				LocationWeight:       getEnvFloatOrDefault("SEARCH_LOCATION_WEIGHT", defaults.LocationWeight),
				ActivityWeight:       getEnvFloatOrDefault("SEARCH_ACTIVITY_WEIGHT", defaults.ActivityWeight),
				GroupSizeWeight:      getEnvFloatOrDefault("SEARCH_GROUP_SIZE_WEIGHT", defaults.GroupSizeWeight),
				LodgingWeight:        getEnvFloatOrDefault("SEARCH_LODGING_WEIGHT", defaults.LodgingWeight),
				TransportationWeight: getEnvFloatOrDefault("SEARCH_TRANSPORT_WEIGHT", defaults.TransportationWeight),
				TripPaceWeight:       getEnvFloatOrDefault("SEARCH_TRIP_PACE_WEIGHT", defaults.TripPaceWeight),
				MinimumScore:         getEnvFloatOrDefault("SEARCH_MIN_SCORE", defaults.MinimumScore),
			},
			MinResults:         getEnvIntOrDefault("MIN_SEARCH_RESULTS", 5),
			MinGenerateResults: getEnvIntOrDefault("MIN_GENERATE_RESULTS", 3),
		},
		Routing: RoutingConfig{
			GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		},
		Discovery: DiscoveryConfig{
			ProjectID:     os.Getenv("GOOGLE_CLOUD_PROJECT_ID"),
			Location:      getEnvOrDefault("VERTEX_SEARCH_LOCATION", "global"),
			DataStoreID:   os.Getenv("VERTEX_SEARCH_DATA_STORE_ID"),
			ServingConfig: getEnvOrDefault("VERTEX_SEARCH_SERVING_CONFIG", "default_config"),
			AccessToken:   os.Getenv("GOOGLE_ACCESS_TOKEN"),
		},
		Media: MediaConfig{
			ItineraryBucket: getEnvOrDefault("ITINERARY_BUCKET", "cairn-itineraries"),
			ActivityBucket:  os.Getenv("ACTIVITY_BUCKET"),
		},
		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
