package itineraries

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
)

type MockItineraryRepo struct {
	mock.Mock
}

func (m *MockItineraryRepo) FindExact(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeaturedVacation), args.Error(1)
}

func (m *MockItineraryRepo) FindPartial(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeaturedVacation), args.Error(1)
}

func (m *MockItineraryRepo) FindByLocation(ctx context.Context, query *models.SearchQuery) ([]models.FeaturedVacation, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeaturedVacation), args.Error(1)
}

func (m *MockItineraryRepo) FindFlexible(ctx context.Context, query *models.SearchQuery, limit int64) ([]models.FeaturedVacation, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeaturedVacation), args.Error(1)
}

func (m *MockItineraryRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FeaturedVacation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeaturedVacation), args.Error(1)
}

func (m *MockItineraryRepo) List(ctx context.Context, page, limit int64) ([]models.FeaturedVacation, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FeaturedVacation), args.Error(1)
}

func (m *MockItineraryRepo) Insert(ctx context.Context, itinerary *models.FeaturedVacation) (primitive.ObjectID, error) {
	args := m.Called(ctx, itinerary)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}

type MockLodgingRepo struct {
	mock.Mock
}

func (m *MockLodgingRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Accommodation, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Accommodation), args.Error(1)
}

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

// stubMedia passes itineraries through untouched so tests stay independent
// of bucket listings.
type stubMedia struct{}

func (stubMedia) AttachImages(_ context.Context, itineraries []models.FeaturedVacation) []models.FeaturedVacation {
	return itineraries
}
func (stubMedia) ItineraryImages(context.Context, string) []string { return nil }
func (stubMedia) ActivityImages(context.Context, string) []string  { return nil }

func newTestService(repo *MockItineraryRepo, lodging *MockLodgingRepo, activityRepo *MockActivityRepo) *ServiceImpl {
	return NewServiceImpl(repo, lodging, activityRepo, stubMedia{}, zap.NewNop())
}

func activityWithID(id primitive.ObjectID, title string, tags ...string) models.Activity {
	return models.Activity{ID: &id, Title: title, Tags: tags}
}

func TestToSearchResponseDropsUnresolvedActivities(t *testing.T) {
	ctx := context.Background()
	itineraryID := primitive.NewObjectID()
	resolvedID := primitive.NewObjectID()
	missingID := primitive.NewObjectID()

	itinerary := models.FeaturedVacation{
		ID:       &itineraryID,
		TripName: "Denver Hiking Adventure",
		Days: models.Days{
			"day1": {
				models.NewTransportationItem("09:00:00", models.ItemLocation{Name: "Denver, Colorado"}, "Arrival and Check-in"),
				models.NewActivityItem("10:00:00", resolvedID),
				models.NewActivityItem("14:00:00", missingID),
			},
		},
	}

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]models.Activity{activityWithID(resolvedID, "Rocky Mountain Hike", "hiking")}, nil).Once()

	svc := newTestService(new(MockItineraryRepo), new(MockLodgingRepo), activityRepo)
	items := svc.ToSearchResponse(ctx, []models.FeaturedVacation{itinerary})

	require.Len(t, items, 1)
	require.Len(t, items[0].Days["day1"], 2)
	assert.Equal(t, models.DayItemTransportation, items[0].Days["day1"][0].Type)
	assert.Equal(t, resolvedID, items[0].Days["day1"][1].ActivityID)

	require.Len(t, items[0].Activities, 1)
	assert.Equal(t, "Rocky Mountain Hike", items[0].Activities[0].Label)

	assert.NotNil(t, items[0].Images)
	assert.Zero(t, items[0].PersonCost)
	activityRepo.AssertExpectations(t)
}

func TestToSearchResponseSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	itineraryID := primitive.NewObjectID()
	itinerary := models.FeaturedVacation{ID: &itineraryID, TripName: "Boulder Getaway"}

	svc := newTestService(new(MockItineraryRepo), new(MockLodgingRepo), new(MockActivityRepo))
	items := svc.ToSearchResponse(ctx, []models.FeaturedVacation{itinerary, itinerary})

	assert.Len(t, items, 1)
}

func TestToSearchResponseOrdersSummariesByDay(t *testing.T) {
	ctx := context.Background()
	firstID := primitive.NewObjectID()
	secondID := primitive.NewObjectID()

	itinerary := models.FeaturedVacation{
		TripName: "Aspen Explorer",
		Days: models.Days{
			"day2": {models.NewActivityItem("10:00:00", secondID)},
			"day1": {models.NewActivityItem("10:00:00", firstID)},
		},
	}

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]models.Activity{
			activityWithID(secondID, "Snowmass Rafting"),
			activityWithID(firstID, "Maroon Bells Hike"),
		}, nil).Once()

	svc := newTestService(new(MockItineraryRepo), new(MockLodgingRepo), activityRepo)
	items := svc.ToSearchResponse(ctx, []models.FeaturedVacation{itinerary})

	require.Len(t, items, 1)
	require.Len(t, items[0].Activities, 2)
	assert.Equal(t, "Maroon Bells Hike", items[0].Activities[0].Label)
	assert.Equal(t, "Snowmass Rafting", items[0].Activities[1].Label)
}

func TestPopulateSubstitutesPlaceholders(t *testing.T) {
	ctx := context.Background()
	resolvedID := primitive.NewObjectID()
	missingActivityID := primitive.NewObjectID()
	missingLodgingID := primitive.NewObjectID()

	itinerary := models.FeaturedVacation{
		TripName: "Estes Park Escape",
		Days: models.Days{
			"day1": {
				models.NewActivityItem("10:00:00", resolvedID),
				models.NewActivityItem("13:00:00", missingActivityID),
				models.NewAccommodationItem("20:00:00", missingLodgingID),
			},
		},
	}

	activityRepo := new(MockActivityRepo)
	activityRepo.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]models.Activity{activityWithID(resolvedID, "Trail Ridge Walk", "hiking")}, nil).Once()

	lodgingRepo := new(MockLodgingRepo)
	lodgingRepo.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]models.Accommodation{}, nil).Once()

	svc := newTestService(new(MockItineraryRepo), lodgingRepo, activityRepo)
	populated, err := svc.Populate(ctx, itinerary)

	require.NoError(t, err)
	items := populated.PopulatedDays["day1"]
	require.Len(t, items, 3)

	assert.Equal(t, "Trail Ridge Walk", items[0].Activity.Title)

	require.NotNil(t, items[1].Activity)
	assert.True(t, strings.HasPrefix(items[1].Activity.Title, "Unknown Activity"), items[1].Activity.Title)
	assert.Equal(t, "unavailable", items[1].Activity.OnlineBookingStatus)

	require.NotNil(t, items[2].Accommodation)
	assert.True(t, strings.HasPrefix(items[2].Accommodation.Name, "Unknown Accommodation"), items[2].Accommodation.Name)

	// Placeholders never land in the summary list.
	require.Len(t, populated.Activities, 1)
	assert.Equal(t, "Trail Ridge Walk", populated.Activities[0].Label)
}

func TestGetByIDPassesThroughNotFound(t *testing.T) {
	ctx := context.Background()
	id := primitive.NewObjectID()

	repo := new(MockItineraryRepo)
	repo.On("FindByID", mock.Anything, id).Return(nil, models.ErrNotFound).Once()

	svc := newTestService(repo, new(MockLodgingRepo), new(MockActivityRepo))
	populated, err := svc.GetByID(ctx, id)

	assert.Nil(t, populated)
	assert.ErrorIs(t, err, models.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestListPopulatesEveryItinerary(t *testing.T) {
	ctx := context.Background()
	firstID := primitive.NewObjectID()
	secondID := primitive.NewObjectID()

	repo := new(MockItineraryRepo)
	repo.On("List", mock.Anything, int64(1), int64(10)).Return([]models.FeaturedVacation{
		{ID: &firstID, TripName: "Denver Hiking Adventure"},
		{ID: &secondID, TripName: "Boulder Getaway"},
	}, nil).Once()

	svc := newTestService(repo, new(MockLodgingRepo), new(MockActivityRepo))
	populated, processed, err := svc.List(ctx, 1, 10)

	require.NoError(t, err)
	assert.Len(t, populated, 2)
	assert.Len(t, processed, 2)
	repo.AssertExpectations(t)
}
