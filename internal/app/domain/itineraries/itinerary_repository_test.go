package itineraries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cairntrips/cairn/internal/app/models"
)

func intPtr(n int) *int { return &n }

func TestQueryCities(t *testing.T) {
	tests := []struct {
		name      string
		locations []string
		expected  []string
	}{
		{
			name:      "city and state pairs",
			locations: []string{"Denver, Colorado", "Boulder, Colorado"},
			expected:  []string{"Denver", "Boulder"},
		},
		{
			name:      "bare city with whitespace",
			locations: []string{" Aspen "},
			expected:  []string{"Aspen"},
		},
		{
			name:      "state only yields nothing",
			locations: []string{", Colorado", ""},
			expected:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, queryCities(tc.locations))
		})
	}
}

func TestLocationConditions(t *testing.T) {
	conditions := locationConditions([]string{"Denver, Colorado"})

	require.Len(t, conditions, 2)

	start := conditions[0]["start_location.city"].(bson.M)
	patterns := start["$in"].([]primitive.Regex)
	require.Len(t, patterns, 1)
	assert.Equal(t, "^Denver$", patterns[0].Pattern)
	assert.Equal(t, "i", patterns[0].Options)

	_, hasEnd := conditions[1]["end_location.city"]
	assert.True(t, hasEnd)

	assert.Nil(t, locationConditions(nil))
}

func TestLocationConditionsEscapeMetacharacters(t *testing.T) {
	conditions := locationConditions([]string{"Denver("})

	require.Len(t, conditions, 2)
	start := conditions[0]["start_location.city"].(bson.M)
	patterns := start["$in"].([]primitive.Regex)
	require.Len(t, patterns, 1)
	assert.Equal(t, `^Denver\($`, patterns[0].Pattern)
}

func TestLabelConditions(t *testing.T) {
	conditions := labelConditions([]string{"Hiking", "ATVing"})

	require.Len(t, conditions, 2)
	elem := conditions[0]["activities"].(bson.M)["$elemMatch"].(bson.M)
	label := elem["label"].(bson.M)
	assert.Equal(t, "hiking", label["$regex"])
	assert.Equal(t, "i", label["$options"])

	assert.Nil(t, labelConditions(nil))
}

func TestLabelConditionsEscapeMetacharacters(t *testing.T) {
	conditions := labelConditions([]string{"hiking (guided)"})

	require.Len(t, conditions, 1)
	elem := conditions[0]["activities"].(bson.M)["$elemMatch"].(bson.M)
	label := elem["label"].(bson.M)
	assert.Equal(t, `hiking \(guided\)`, label["$regex"])
}

func TestBuildExactFilter(t *testing.T) {
	query := &models.SearchQuery{
		Locations:  []string{"Denver, Colorado"},
		Activities: []string{"hiking", "rafting"},
		Lodging:    []string{"hotel"},
		Adults:     intPtr(2),
		Children:   intPtr(1),
	}

	filter := buildExactFilter(query)

	require.Len(t, filter["$or"].([]bson.M), 2)
	require.Len(t, filter["$and"].([]bson.M), 2)
	assert.Equal(t, bson.M{"$exists": true, "$not": bson.M{"$size": 0}}, filter["lodging"])
	assert.Equal(t, bson.M{"$lte": 3}, filter["min_group"])
	assert.Equal(t, bson.M{"$gte": 3}, filter["max_group"])
}

func TestBuildExactFilterSkipsAbsentCriteria(t *testing.T) {
	filter := buildExactFilter(&models.SearchQuery{Activities: []string{"hiking"}})

	_, hasLocations := filter["$or"]
	assert.False(t, hasLocations)
	_, hasLodging := filter["lodging"]
	assert.False(t, hasLodging)
	_, hasGroup := filter["min_group"]
	assert.False(t, hasGroup)
	require.Len(t, filter["$and"].([]bson.M), 1)
}

func TestBuildPartialFilter(t *testing.T) {
	t.Run("locations and activities become AND of OR groups", func(t *testing.T) {
		filter := buildPartialFilter(&models.SearchQuery{
			Locations:  []string{"Denver, Colorado"},
			Activities: []string{"hiking", "rafting"},
		})

		groups := filter["$and"].([]bson.M)
		require.Len(t, groups, 2)
		assert.Len(t, groups[0]["$or"].([]bson.M), 2)
		assert.Len(t, groups[1]["$or"].([]bson.M), 2)
	})

	t.Run("single criterion stays a bare OR", func(t *testing.T) {
		filter := buildPartialFilter(&models.SearchQuery{Locations: []string{"Denver"}})

		_, hasAnd := filter["$and"]
		assert.False(t, hasAnd)
		assert.Len(t, filter["$or"].([]bson.M), 2)
	})

	t.Run("no criteria matches everything", func(t *testing.T) {
		assert.Empty(t, buildPartialFilter(&models.SearchQuery{}))
	})
}

func TestBuildLocationFilter(t *testing.T) {
	filter := buildLocationFilter(&models.SearchQuery{
		Locations: []string{"Denver, Colorado"},
		Adults:    intPtr(4),
	})

	assert.Len(t, filter["$or"].([]bson.M), 2)
	assert.Equal(t, bson.M{"$lte": 4}, filter["min_group"])
	assert.Equal(t, bson.M{"$gte": 4}, filter["max_group"])
}

func TestBuildFlexibleFilter(t *testing.T) {
	t.Run("collapses every condition into one OR", func(t *testing.T) {
		filter := buildFlexibleFilter(&models.SearchQuery{
			Locations:  []string{"Denver, Colorado"},
			Activities: []string{"hiking"},
		})

		require.NotNil(t, filter)
		assert.Len(t, filter["$or"].([]bson.M), 3)
	})

	t.Run("no criteria yields nil for the recency fallback", func(t *testing.T) {
		assert.Nil(t, buildFlexibleFilter(&models.SearchQuery{Adults: intPtr(2)}))
	})
}
