package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
)

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Activity, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Activity), args.Error(1)
}

func (m *MockActivityRepo) FindCandidates(ctx context.Context, cities, terms []string) ([]models.Activity, error) {
	args := m.Called(ctx, cities, terms)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Activity), args.Error(1)
}

func newScorer(activityRepo *MockActivityRepo) *ServiceImpl {
	return NewServiceImpl(models.DefaultSearchWeights(), activityRepo, zap.NewNop())
}

func itineraryInCity(city, state string, activityIDs ...primitive.ObjectID) models.FeaturedVacation {
	id := primitive.NewObjectID()
	items := make([]models.DayItem, 0, len(activityIDs))
	for _, activityID := range activityIDs {
		items = append(items, models.NewActivityItem("10:00:00", activityID))
	}
	location := models.Location{City: city, State: state}
	return models.FeaturedVacation{
		ID:            &id,
		TripName:      city + " Adventure",
		StartLocation: location,
		EndLocation:   location,
		MinGroup:      1,
		MaxGroup:      8,
		Days:          models.Days{"day1": items},
	}
}

func paceQuery(pace models.TripPace) *models.SearchQuery {
	return &models.SearchQuery{TripPace: &pace}
}

func TestLocationMatchScore(t *testing.T) {
	tests := []struct {
		name     string
		city     string
		state    string
		itinCity string
		itinSt   string
		expected float64
	}{
		{"city and state match", "denver", "colorado", "denver", "colorado", 1.0},
		{"city match only", "denver", "co", "denver", "colorado", 0.7},
		{"state match only", "pueblo", "colorado", "denver", "colorado", 0.3},
		{"substring either direction", "winter park", "", "winter park resort", "colorado", 0.5},
		{"no match", "moab", "utah", "denver", "colorado", 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, locationMatchScore(tc.city, tc.state, tc.itinCity, tc.itinSt))
		})
	}
}

func TestScoreLocationTakesBestEndpoint(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))
	itinerary := itineraryInCity("Boulder", "Colorado")
	itinerary.EndLocation = models.Location{City: "Denver", State: "Colorado"}

	score := svc.scoreLocation(&itinerary, &models.SearchQuery{Locations: []string{"Denver, Colorado"}})

	assert.InDelta(t, 35.0, score, 0.001)
}

func TestScoreLocationWithoutCriteria(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))
	itinerary := itineraryInCity("Denver", "Colorado")

	assert.Zero(t, svc.scoreLocation(&itinerary, &models.SearchQuery{}))
}

func TestScoreActivitiesMatchesSynonyms(t *testing.T) {
	activityID := primitive.NewObjectID()
	itinerary := itineraryInCity("Estes Park", "Colorado", activityID)

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]models.Activity{
		{
			ID:            &activityID,
			Title:         "Trail Ridge Trek",
			Description:   "A guided walk above the treeline",
			ActivityTypes: []string{"Outdoor"},
		},
	}, nil)

	svc := newScorer(activityRepo)
	query := &models.SearchQuery{Activities: []string{"hiking"}}

	// "hiking" never appears verbatim; the synonym table bridges to "trail".
	score := svc.scoreActivities(context.Background(), &itinerary, query)

	assert.InDelta(t, 30.0, score, 0.001)
}

func TestScoreActivitiesPartialMatch(t *testing.T) {
	activityID := primitive.NewObjectID()
	itinerary := itineraryInCity("Denver", "Colorado", activityID)

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]models.Activity{
		{ID: &activityID, Title: "Whitewater Rafting", ActivityTypes: []string{"Rafting"}},
	}, nil)

	svc := newScorer(activityRepo)
	query := &models.SearchQuery{Activities: []string{"rafting", "skiing"}}

	score := svc.scoreActivities(context.Background(), &itinerary, query)

	assert.InDelta(t, 15.0, score, 0.001)
}

func TestScoreActivitiesNoPreference(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))

	withActivities := itineraryInCity("Denver", "Colorado", primitive.NewObjectID())
	assert.InDelta(t, 15.0, svc.scoreActivities(context.Background(), &withActivities, &models.SearchQuery{}), 0.001)

	empty := itineraryInCity("Denver", "Colorado")
	assert.Zero(t, svc.scoreActivities(context.Background(), &empty, &models.SearchQuery{}))
}

func TestScoreActivitiesFallsBackToTextOnLookupFailure(t *testing.T) {
	itinerary := itineraryInCity("Denver", "Colorado", primitive.NewObjectID())
	itinerary.TripName = "Denver Hiking Adventure"

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	svc := newScorer(activityRepo)
	query := &models.SearchQuery{Activities: []string{"hiking"}}

	score := svc.scoreActivities(context.Background(), &itinerary, query)

	assert.InDelta(t, 30.0, score, 0.001)
}

func TestScoreGroupSize(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))
	itinerary := itineraryInCity("Denver", "Colorado")
	itinerary.MinGroup = 4
	itinerary.MaxGroup = 6

	tests := []struct {
		name     string
		adults   int
		expected float64
	}{
		{"inside the range", 5, 15.0},
		{"one below minimum", 3, 10.5},
		{"one above maximum", 7, 10.5},
		{"two below minimum", 2, 6.0},
		{"far outside", 10, 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adults := tc.adults
			score := svc.scoreGroupSize(&itinerary, &models.SearchQuery{Adults: &adults})
			assert.InDelta(t, tc.expected, score, 0.001)
		})
	}

	t.Run("unknown party size", func(t *testing.T) {
		assert.Zero(t, svc.scoreGroupSize(&itinerary, &models.SearchQuery{}))
	})
}

func TestScoreLodging(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))

	itinerary := itineraryInCity("Denver", "Colorado")
	itinerary.Days["day1"] = append(itinerary.Days["day1"],
		models.NewAccommodationItem("20:00:00", primitive.NewObjectID()))

	score := svc.scoreLodging(&itinerary, &models.SearchQuery{Lodging: []string{"hotel"}})
	assert.InDelta(t, 3.0, score, 0.001)

	bare := itineraryInCity("Denver", "Colorado")
	assert.Zero(t, svc.scoreLodging(&bare, &models.SearchQuery{Lodging: []string{"hotel"}}))
	assert.Zero(t, svc.scoreLodging(&itinerary, &models.SearchQuery{}))
}

func TestScoreTransportation(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))
	itinerary := itineraryInCity("Denver", "Colorado")
	itinerary.Days["day1"] = append(itinerary.Days["day1"],
		models.NewTransportationItem("09:00:00", models.ItemLocation{Name: "Denver, Colorado"}, "Shuttle to Trailhead"))

	shuttle := "shuttle"
	assert.InDelta(t, 3.0, svc.scoreTransportation(&itinerary, &models.SearchQuery{Transportation: &shuttle}), 0.001)

	train := "train"
	assert.InDelta(t, 0.9, svc.scoreTransportation(&itinerary, &models.SearchQuery{Transportation: &train}), 0.001)

	assert.Zero(t, svc.scoreTransportation(&itinerary, &models.SearchQuery{}))
}

func TestScoreTripPace(t *testing.T) {
	svc := newScorer(new(MockActivityRepo))

	// Three activities on the single day: a moderate pace itinerary.
	itinerary := itineraryInCity("Denver", "Colorado",
		primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID())

	assert.InDelta(t, 12.0, svc.scoreTripPace(&itinerary, paceQuery(models.PaceModerate)), 0.001)

	// Relaxed expects 2 activities and 4 hours: one step off on both.
	assert.InDelta(t, 9.6, svc.scoreTripPace(&itinerary, paceQuery(models.PaceRelaxed)), 0.001)

	// No preference earns half credit.
	assert.InDelta(t, 6.0, svc.scoreTripPace(&itinerary, &models.SearchQuery{}), 0.001)
}

func TestScoreItineraryNeverExceedsMaxPossible(t *testing.T) {
	activityID := primitive.NewObjectID()
	itinerary := itineraryInCity("Denver", "Colorado", activityID, primitive.NewObjectID(), primitive.NewObjectID())
	itinerary.Days["day1"] = append(itinerary.Days["day1"],
		models.NewTransportationItem("09:00:00", models.ItemLocation{Name: "Denver, Colorado"}, "Shuttle"),
		models.NewAccommodationItem("20:00:00", primitive.NewObjectID()))

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]models.Activity{
		{ID: &activityID, Title: "Hiking Tour", ActivityTypes: []string{"Hiking"}},
	}, nil)

	adults := 2
	shuttle := "shuttle"
	pace := models.PaceModerate
	query := &models.SearchQuery{
		Locations:      []string{"Denver, Colorado"},
		Activities:     []string{"hiking"},
		Adults:         &adults,
		Lodging:        []string{"hotel"},
		Transportation: &shuttle,
		TripPace:       &pace,
	}

	svc := newScorer(activityRepo)
	scored := svc.ScoreItinerary(context.Background(), &itinerary, query)

	weights := models.DefaultSearchWeights()
	assert.LessOrEqual(t, scored.TotalScore, weights.MaxPossibleScore())
	assert.Greater(t, scored.TotalScore, weights.MinimumScore)
}

func TestScoreAndRankFiltersAndSorts(t *testing.T) {
	denver := itineraryInCity("Denver", "Colorado")
	boulder := itineraryInCity("Boulder", "Colorado")
	moab := itineraryInCity("Moab", "Utah")

	svc := newScorer(new(MockActivityRepo))
	query := &models.SearchQuery{Locations: []string{"Denver, Colorado"}}

	ranked := svc.ScoreAndRank(context.Background(), []models.FeaturedVacation{moab, boulder, denver}, query)

	// Moab scores below the minimum and falls out; Denver outranks Boulder.
	require.Len(t, ranked, 2)
	assert.Equal(t, "Denver Adventure", ranked[0].Itinerary.TripName)
	assert.Equal(t, "Boulder Adventure", ranked[1].Itinerary.TripName)
	assert.Greater(t, ranked[0].TotalScore, ranked[1].TotalScore)
}

func TestNormalizeScore(t *testing.T) {
	weights := models.DefaultSearchWeights()

	assert.Equal(t, uint8(100), NormalizeScore(weights.MaxPossibleScore(), weights.MaxPossibleScore()))
	assert.Equal(t, uint8(50), NormalizeScore(weights.MaxPossibleScore()/2, weights.MaxPossibleScore()))
	assert.Equal(t, uint8(100), NormalizeScore(weights.MaxPossibleScore()*2, weights.MaxPossibleScore()))
	assert.Equal(t, uint8(0), NormalizeScore(10, 0))
}

func TestNormalizeBreakdown(t *testing.T) {
	weights := models.DefaultSearchWeights()
	breakdown := models.ScoreBreakdown{
		LocationScore: 17.5,
		ActivityScore: 45.0,
		TripPaceScore: -1.0,
	}

	normalized := NormalizeBreakdown(breakdown, weights)

	assert.InDelta(t, 50.0, normalized.LocationScore, 0.001)
	assert.Equal(t, 100.0, normalized.ActivityScore)
	assert.Zero(t, normalized.TripPaceScore)
	assert.Zero(t, normalized.GroupSizeScore)
}
