package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
	"github.com/cairntrips/cairn/internal/pkg/config"
)

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		ProjectID:     "cairn-prod",
		Location:      "global",
		DataStoreID:   "activities-store",
		ServingConfig: "default_config",
		AccessToken:   "test-token",
	}
}

func newTestService(t *testing.T, handler http.Handler) *ServiceImpl {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewServiceImpl(testConfig(), zap.NewNop())
	require.NoError(t, err)
	svc.baseURL = server.URL
	return svc
}

func TestNewServiceRequiresConfiguration(t *testing.T) {
	missingProject := testConfig()
	missingProject.ProjectID = ""
	_, err := NewServiceImpl(missingProject, zap.NewNop())
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	missingStore := testConfig()
	missingStore.DataStoreID = ""
	_, err = NewServiceImpl(missingStore, zap.NewNop())
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestSearchActivities(t *testing.T) {
	structID := primitive.NewObjectID()

	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t,
			"/v1/projects/cairn-prod/locations/global/dataStores/activities-store/servingConfigs/default_config:search",
			r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hiking rafting Denver, Colorado", req.Query)
		assert.Equal(t, searchPageSize, req.PageSize)
		assert.Equal(t, "AUTO", req.QueryExpansionSpec.Condition)
		assert.Equal(t, "AUTO", req.SpellCorrectionSpec.Mode)

		_ = json.NewEncoder(w).Encode(searchResponse{
			Results: []searchResult{
				{
					ID: structID.Hex(),
					Document: searchDocument{
						ID: structID.Hex(),
						StructData: map[string]any{
							"title":            "Rocky Mountain Trail Hike",
							"price_per_person": float64(85),
						},
					},
				},
				{
					ID: "json-doc",
					Document: searchDocument{
						ID:       "json-doc",
						JSONData: `{"title": "Clear Creek Rafting", "description": "Half day on the water"}`,
					},
				},
			},
			TotalSize: 2,
		})
	}))

	activities, err := svc.SearchActivities(context.Background(), []string{"hiking", "rafting"}, "Denver, Colorado")

	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "Rocky Mountain Trail Hike", activities[0].Title)
	assert.Equal(t, structID, *activities[0].ID)
	assert.Equal(t, 85, activities[0].PricePerPerson)
	assert.Equal(t, "Clear Creek Rafting", activities[1].Title)
	assert.Equal(t, "Half day on the water", activities[1].Description)
}

func TestSearchActivitiesDependencyError(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := svc.SearchActivities(context.Background(), []string{"hiking"}, "")

	assert.ErrorIs(t, err, models.ErrDependencyUnavailable)
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		terms    []string
		location string
		expected string
	}{
		{"terms and location", []string{"hiking", "rafting"}, "Denver, Colorado", "hiking rafting Denver, Colorado"},
		{"terms only", []string{"skiing"}, "", "skiing"},
		{"location only", nil, "Boulder", "Boulder"},
		{"blank terms dropped", []string{" ", "camping"}, "", "camping"},
		{"nothing requested", nil, "", "activities"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, buildSearchQuery(tc.terms, tc.location))
		})
	}
}

func TestActivityFromDocumentDefaults(t *testing.T) {
	activity := ActivityFromDocument("not-a-hex-id", map[string]any{
		"name": "Sunset Kayak Tour",
	})

	require.NotNil(t, activity.ID)
	assert.Equal(t, "Sunset Kayak Tour", activity.Title)
	assert.Equal(t, defaultDescription, activity.Description)
	assert.Equal(t, defaultDurationMinutes, activity.DurationMinutes)
	assert.Equal(t, defaultCapacityMin, activity.Capacity.Minimum)
	assert.Equal(t, defaultCapacityMax, activity.Capacity.Maximum)

	unnamed := ActivityFromDocument("", map[string]any{})
	assert.Equal(t, defaultTitle, unnamed.Title)
}

func TestActivityFromDocumentParsesKnownID(t *testing.T) {
	id := primitive.NewObjectID()

	fromDoc := ActivityFromDocument("", map[string]any{"_id": id.Hex(), "title": "Mine Tour"})
	require.NotNil(t, fromDoc.ID)
	assert.Equal(t, id, *fromDoc.ID)

	fromResult := ActivityFromDocument(id.Hex(), map[string]any{"title": "Mine Tour"})
	require.NotNil(t, fromResult.ID)
	assert.Equal(t, id, *fromResult.ID)
}

func TestActivityFromDocumentTimeSlots(t *testing.T) {
	activity := ActivityFromDocument("", map[string]any{
		"title": "Hot Springs Soak",
		"daily_time_slots": []any{
			"09:00-17:00",
			map[string]any{"start": "18:00", "end": "21:00"},
			"malformed",
		},
	})

	require.Len(t, activity.DailyTimeSlots, 2)
	assert.Equal(t, models.TimeSlot{Start: "09:00", End: "17:00"}, activity.DailyTimeSlots[0])
	assert.Equal(t, models.TimeSlot{Start: "18:00", End: "21:00"}, activity.DailyTimeSlots[1])
}

func TestActivityFromDocumentNestedAddress(t *testing.T) {
	activity := ActivityFromDocument("", map[string]any{
		"title": "Garden of the Gods Walk",
		"address": map[string]any{
			"street": "1805 N 30th St",
			"city":   "Colorado Springs",
			"state":  "Colorado",
			"zip":    "80904",
		},
		"capacity": map[string]any{"minimum": float64(2), "maximum": float64(12)},
	})

	assert.Equal(t, "Colorado Springs", activity.Address.City)
	assert.Equal(t, "80904", activity.Address.Zip)
	assert.Equal(t, 2, activity.Capacity.Minimum)
	assert.Equal(t, 12, activity.Capacity.Maximum)

	flat := ActivityFromDocument("", map[string]any{"city": "Aspen", "state": "Colorado"})
	assert.Equal(t, "Aspen", flat.Address.City)
	assert.Equal(t, "Colorado", flat.Address.State)
}
