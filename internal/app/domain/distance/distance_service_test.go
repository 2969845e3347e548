package distance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/models"
	appmetrics "github.com/cairntrips/cairn/internal/observability/metrics"
)

func init() {
	// Instruments bind to the global no-op meter provider under test.
	appmetrics.InitAppMetrics()
}

// MockDistanceRepo is a mock implementation of Repository
type MockDistanceRepo struct {
	mock.Mock
}

func (m *MockDistanceRepo) FindFresh(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.CachedDistance, error) {
	args := m.Called(ctx, origin, destination, mode, withTraffic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CachedDistance), args.Error(1)
}

func (m *MockDistanceRepo) Insert(ctx context.Context, entry *models.CachedDistance) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDistanceRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockMatrix is a mock implementation of Matrix
type MockMatrix struct {
	mock.Mock
}

func (m *MockMatrix) FetchDistance(ctx context.Context, origin, destination Point, mode models.TravelMode, withTraffic bool) (*models.DistanceResult, error) {
	args := m.Called(ctx, origin, destination, mode, withTraffic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DistanceResult), args.Error(1)
}

func (m *MockMatrix) FetchMatrix(ctx context.Context, origins, destinations []Point, mode models.TravelMode, withTraffic bool) ([][]models.DistanceResult, error) {
	args := m.Called(ctx, origins, destinations, mode, withTraffic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]models.DistanceResult), args.Error(1)
}

var (
	denver  = Point{Lat: 39.7392, Lng: -104.9903}
	boulder = Point{Lat: 40.0150, Lng: -105.2705}
)

func TestGetDistance(t *testing.T) {
	ctx := context.Background()

	cachedEntry := &models.CachedDistance{
		OriginLat:       denver.Lat,
		OriginLng:       denver.Lng,
		DestinationLat:  boulder.Lat,
		DestinationLng:  boulder.Lng,
		DistanceMeters:  43000,
		DurationSeconds: 2100,
		TravelMode:      string(models.ModeDriving),
	}

	tests := []struct {
		name       string
		matrixNil  bool
		setupMocks func(*MockDistanceRepo, *MockMatrix)
		check      func(*testing.T, *models.DistanceResult)
	}{
		{
			name: "Cache hit skips the matrix API",
			setupMocks: func(repo *MockDistanceRepo, matrix *MockMatrix) {
				repo.On("FindFresh", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(cachedEntry, nil).Once()
			},
			check: func(t *testing.T, result *models.DistanceResult) {
				assert.True(t, result.FromCache)
				assert.Equal(t, 43000, result.DistanceMeters)
				assert.Equal(t, 35, result.DurationMinutes)
			},
		},
		{
			name: "Cache miss fetches and stores",
			setupMocks: func(repo *MockDistanceRepo, matrix *MockMatrix) {
				repo.On("FindFresh", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(nil, nil).Once()
				matrix.On("FetchDistance", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(&models.DistanceResult{DistanceMeters: 44000, DurationMinutes: 38}, nil).Once()
				repo.On("Insert", mock.Anything, mock.AnythingOfType("*models.CachedDistance")).
					Return(nil).Once()
			},
			check: func(t *testing.T, result *models.DistanceResult) {
				assert.False(t, result.FromCache)
				assert.Equal(t, 44000, result.DistanceMeters)
			},
		},
		{
			name: "Matrix failure degrades to estimate",
			setupMocks: func(repo *MockDistanceRepo, matrix *MockMatrix) {
				repo.On("FindFresh", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(nil, nil).Once()
				matrix.On("FetchDistance", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(nil, errors.New("quota exceeded")).Once()
			},
			check: func(t *testing.T, result *models.DistanceResult) {
				assert.False(t, result.FromCache)
				assert.Greater(t, result.DistanceMeters, 0)
				assert.Greater(t, result.DurationMinutes, 0)
			},
		},
		{
			name:      "No matrix client estimates immediately",
			matrixNil: true,
			setupMocks: func(repo *MockDistanceRepo, matrix *MockMatrix) {
				repo.On("FindFresh", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(nil, nil).Once()
			},
			check: func(t *testing.T, result *models.DistanceResult) {
				assert.False(t, result.FromCache)
				assert.Greater(t, result.DurationMinutes, 0)
			},
		},
		{
			name: "Failed cache write does not fail the lookup",
			setupMocks: func(repo *MockDistanceRepo, matrix *MockMatrix) {
				repo.On("FindFresh", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(nil, nil).Once()
				matrix.On("FetchDistance", mock.Anything, denver, boulder, models.ModeDriving, false).
					Return(&models.DistanceResult{DistanceMeters: 44000, DurationMinutes: 38}, nil).Once()
				repo.On("Insert", mock.Anything, mock.AnythingOfType("*models.CachedDistance")).
					Return(errors.New("write failed")).Once()
			},
			check: func(t *testing.T, result *models.DistanceResult) {
				assert.Equal(t, 44000, result.DistanceMeters)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := new(MockDistanceRepo)
			mockMatrix := new(MockMatrix)
			tc.setupMocks(mockRepo, mockMatrix)

			var service *ServiceImpl
			if tc.matrixNil {
				service = NewServiceImpl(mockRepo, nil, zap.NewNop())
			} else {
				service = NewServiceImpl(mockRepo, mockMatrix, zap.NewNop())
			}

			result, err := service.GetDistance(ctx, denver, boulder, models.ModeDriving, false)

			assert.NoError(t, err)
			assert.NotNil(t, result)
			tc.check(t, result)
			mockRepo.AssertExpectations(t)
			mockMatrix.AssertExpectations(t)
		})
	}
}

func TestGetDistancesBatch(t *testing.T) {
	ctx := context.Background()
	origins := []Point{denver, boulder}
	destinations := []Point{denver, boulder}

	t.Run("Matrix fills pairs the cache is missing", func(t *testing.T) {
		mockRepo := new(MockDistanceRepo)
		mockMatrix := new(MockMatrix)

		cachedEntry := &models.CachedDistance{DistanceMeters: 100, DurationSeconds: 600}
		// Only denver->denver is cached; the rest comes from one matrix call.
		mockRepo.On("FindFresh", mock.Anything, denver, denver, models.ModeDriving, false).
			Return(cachedEntry, nil).Once()
		mockRepo.On("FindFresh", mock.Anything, mock.Anything, mock.Anything, models.ModeDriving, false).
			Return(nil, nil).Times(3)

		fetched := [][]models.DistanceResult{
			{{DistanceMeters: 0, DurationMinutes: 0}, {DistanceMeters: 43000, DurationMinutes: 35}},
			{{DistanceMeters: 43000, DurationMinutes: 35}, {DistanceMeters: 0, DurationMinutes: 0}},
		}
		mockMatrix.On("FetchMatrix", mock.Anything, origins, destinations, models.ModeDriving, false).
			Return(fetched, nil).Once()
		mockRepo.On("Insert", mock.Anything, mock.AnythingOfType("*models.CachedDistance")).
			Return(nil).Times(3)

		service := NewServiceImpl(mockRepo, mockMatrix, zap.NewNop())
		results, err := service.GetDistancesBatch(ctx, origins, destinations, models.ModeDriving, false)

		assert.NoError(t, err)
		assert.Len(t, results, 2)
		assert.True(t, results[0][0].FromCache)
		assert.Equal(t, 100, results[0][0].DistanceMeters)
		assert.False(t, results[0][1].FromCache)
		assert.Equal(t, 43000, results[0][1].DistanceMeters)
		mockRepo.AssertExpectations(t)
		mockMatrix.AssertExpectations(t)
	})

	t.Run("Matrix failure estimates every missing pair", func(t *testing.T) {
		mockRepo := new(MockDistanceRepo)
		mockMatrix := new(MockMatrix)

		mockRepo.On("FindFresh", mock.Anything, mock.Anything, mock.Anything, models.ModeDriving, false).
			Return(nil, nil).Times(4)
		mockMatrix.On("FetchMatrix", mock.Anything, origins, destinations, models.ModeDriving, false).
			Return(nil, errors.New("api down")).Once()

		service := NewServiceImpl(mockRepo, mockMatrix, zap.NewNop())
		results, err := service.GetDistancesBatch(ctx, origins, destinations, models.ModeDriving, false)

		assert.NoError(t, err)
		assert.Len(t, results, 2)
		// Estimates for distinct points are non-zero.
		assert.Greater(t, results[0][1].DurationMinutes, 0)
		assert.Greater(t, results[1][0].DistanceMeters, 0)
		mockRepo.AssertExpectations(t)
		mockMatrix.AssertExpectations(t)
	})
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		setupMock     func(*MockDistanceRepo)
		expected      int64
		expectedError bool
	}{
		{
			name: "Success",
			setupMock: func(mockRepo *MockDistanceRepo) {
				mockRepo.On("DeleteExpired", mock.Anything).Return(int64(12), nil).Once()
			},
			expected: 12,
		},
		{
			name: "Repository Error",
			setupMock: func(mockRepo *MockDistanceRepo) {
				mockRepo.On("DeleteExpired", mock.Anything).Return(int64(0), errors.New("repository error")).Once()
			},
			expectedError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := new(MockDistanceRepo)
			tc.setupMock(mockRepo)

			service := NewServiceImpl(mockRepo, nil, zap.NewNop())
			deleted, err := service.CleanupExpired(ctx)

			if tc.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, deleted)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestEstimate(t *testing.T) {
	// Denver to Boulder is roughly 24 miles as the crow flies.
	result := Estimate(denver, boulder)
	miles := float64(result.DistanceMeters) / metersPerMile

	assert.InDelta(t, 24.0, miles, 2.0)
	assert.Equal(t, int(miles*fallbackMinutesPerMile), result.DurationMinutes)
	assert.False(t, result.FromCache)

	// Zero distance for identical points.
	same := Estimate(denver, denver)
	assert.Equal(t, 0, same.DistanceMeters)
	assert.Equal(t, 0, same.DurationMinutes)
}
