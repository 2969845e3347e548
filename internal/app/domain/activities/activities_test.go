package activities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSynonyms(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		expected []string
	}{
		{
			name:     "atv spellings share one list",
			term:     "ATV",
			expected: []string{"quad", "four wheeler", "off road", "off-road", "4x4", "all terrain vehicle", "dirt bike", "trail riding"},
		},
		{
			name:     "multi word key",
			term:     "hot springs",
			expected: []string{"thermal", "spa", "mineral springs", "geothermal", "springs", "natural springs", "thermal baths"},
		},
		{
			name:     "hiking variants",
			term:     "hikes",
			expected: []string{"trail", "trek", "walking", "nature walk", "mountain", "wilderness"},
		},
		{
			name:     "unknown term has no synonyms",
			term:     "spelunking",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Synonyms(tt.term))
		})
	}
}

func TestExpandTerm(t *testing.T) {
	t.Run("includes the normalized term first", func(t *testing.T) {
		expanded := ExpandTerm("  Skiing ")
		require.NotEmpty(t, expanded)
		assert.Equal(t, "skiing", expanded[0])
		assert.Contains(t, expanded, "alpine")
	})

	t.Run("unknown term expands to itself", func(t *testing.T) {
		assert.Equal(t, []string{"spelunking"}, ExpandTerm("Spelunking"))
	})
}

func TestTermRegexes(t *testing.T) {
	patterns := termRegexes([]string{"hiking", "hot springs"})
	require.Len(t, patterns, 2)

	assert.Equal(t, ".*hiking.*", patterns[0].Pattern)
	assert.Equal(t, "i", patterns[0].Options)

	// Spaces widen into wildcards so intervening words still match.
	assert.Equal(t, ".*hot.*springs.*", patterns[1].Pattern)
}

func TestTermRegexesEscapeMetacharacters(t *testing.T) {
	patterns := termRegexes([]string{"rock (climbing)", "4x4+"})
	require.Len(t, patterns, 2)

	assert.Equal(t, `.*rock.*\(climbing\).*`, patterns[0].Pattern)
	assert.Equal(t, `.*4x4\+.*`, patterns[1].Pattern)
}

func TestBuildEveryTermFilter(t *testing.T) {
	t.Run("each term becomes one AND condition", func(t *testing.T) {
		filter := buildEveryTermFilter([]string{"Denver"}, []string{"hiking", "rafting"})

		conditions, ok := filter["$and"].([]bson.M)
		require.True(t, ok)
		assert.Len(t, conditions, 2)

		for _, condition := range conditions {
			fields, ok := condition["$or"].([]bson.M)
			require.True(t, ok)
			assert.Len(t, fields, 4)
		}

		_, hasCity := filter["address.city"]
		assert.True(t, hasCity)
	})

	t.Run("no terms leaves only the city filter", func(t *testing.T) {
		filter := buildEveryTermFilter([]string{"Denver"}, nil)
		_, hasAnd := filter["$and"]
		assert.False(t, hasAnd)
		_, hasCity := filter["address.city"]
		assert.True(t, hasCity)
	})
}

func TestBuildAnyTermFilter(t *testing.T) {
	filter := buildAnyTermFilter(nil, []string{"hiking"})

	fields, ok := filter["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, fields, 4)

	// The single OR group carries the term plus all its synonyms.
	types := fields[0]["activity_types"].(bson.M)
	patterns := types["$in"].([]primitive.Regex)
	assert.Len(t, patterns, 1+len(Synonyms("hiking")))
}

func TestBuildCityFilter(t *testing.T) {
	t.Run("empty cities means empty filter", func(t *testing.T) {
		assert.Empty(t, buildCityFilter(nil))
	})

	t.Run("cities match case insensitively", func(t *testing.T) {
		filter := buildCityFilter([]string{" Denver "})
		clause := filter["address.city"].(bson.M)
		patterns := clause["$in"].([]primitive.Regex)
		require.Len(t, patterns, 1)
		assert.Equal(t, "^Denver$", patterns[0].Pattern)
		assert.Equal(t, "i", patterns[0].Options)
	})

	t.Run("metacharacters in city names are escaped", func(t *testing.T) {
		filter := buildCityFilter([]string{"Denver("})
		clause := filter["address.city"].(bson.M)
		patterns := clause["$in"].([]primitive.Regex)
		require.Len(t, patterns, 1)
		assert.Equal(t, `^Denver\($`, patterns[0].Pattern)
	})
}
