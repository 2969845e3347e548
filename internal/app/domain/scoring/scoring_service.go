package scoring

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cairntrips/cairn/internal/app/domain/activities"
	"github.com/cairntrips/cairn/internal/app/models"
)

const scoreConcurrency = 8

var _ Service = (*ServiceImpl)(nil)

// Service scores itineraries against a traveler's search criteria across six
// weighted dimensions: location, activities, group size, lodging,
// transportation and trip pace.
type Service interface {
	// ScoreItinerary computes the weighted score for one itinerary.
	ScoreItinerary(ctx context.Context, itinerary *models.FeaturedVacation, query *models.SearchQuery) models.ScoredItinerary

	// ScoreAndRank scores every itinerary, drops those below the minimum
	// score, and returns the rest sorted best first. Ties keep input order.
	ScoreAndRank(ctx context.Context, itineraries []models.FeaturedVacation, query *models.SearchQuery) []models.ScoredItinerary

	// Weights returns the point budget the scorer runs with.
	Weights() models.SearchWeights
}

type ServiceImpl struct {
	logger     *zap.Logger
	weights    models.SearchWeights
	activities activities.Repository

	// Memoizes synonym automatons per search term and resolved activity
	// documents per itinerary, both hot across the itineraries of one
	// ranking pass.
	cache *cache.Cache
}

func NewServiceImpl(weights models.SearchWeights, activityRepo activities.Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		weights:    weights,
		activities: activityRepo,
		cache:      cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *ServiceImpl) Weights() models.SearchWeights { return s.weights }

func (s *ServiceImpl) ScoreItinerary(ctx context.Context, itinerary *models.FeaturedVacation, query *models.SearchQuery) models.ScoredItinerary {
	breakdown := models.ScoreBreakdown{
		LocationScore:       s.scoreLocation(itinerary, query),
		ActivityScore:       s.scoreActivities(ctx, itinerary, query),
		GroupSizeScore:      s.scoreGroupSize(itinerary, query),
		LodgingScore:        s.scoreLodging(itinerary, query),
		TransportationScore: s.scoreTransportation(itinerary, query),
		TripPaceScore:       s.scoreTripPace(itinerary, query),
	}

	total := breakdown.LocationScore + breakdown.ActivityScore + breakdown.GroupSizeScore +
		breakdown.LodgingScore + breakdown.TransportationScore + breakdown.TripPaceScore

	return models.ScoredItinerary{
		Itinerary:      *itinerary,
		TotalScore:     total,
		ScoreBreakdown: breakdown,
	}
}

func (s *ServiceImpl) ScoreAndRank(ctx context.Context, itineraries []models.FeaturedVacation, query *models.SearchQuery) []models.ScoredItinerary {
	ctx, span := otel.Tracer("ScoringService").Start(ctx, "ScoreAndRank", trace.WithAttributes(
		attribute.Int("itinerary.count", len(itineraries)),
	))
	defer span.End()

	results := make([]models.ScoredItinerary, len(itineraries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for i := range itineraries {
		g.Go(func() error {
			results[i] = s.ScoreItinerary(gctx, &itineraries[i], query)
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]models.ScoredItinerary, 0, len(results))
	for _, scored := range results {
		if scored.TotalScore >= s.weights.MinimumScore {
			ranked = append(ranked, scored)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	span.SetAttributes(attribute.Int("ranked.count", len(ranked)))
	span.SetStatus(codes.Ok, "Itineraries ranked")
	return ranked
}

func (s *ServiceImpl) scoreLocation(itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	if len(query.Locations) == 0 {
		return 0
	}

	best := 0.0
	for _, location := range query.Locations {
		parts := strings.Split(location, ",")
		searchCity := strings.ToLower(strings.TrimSpace(parts[0]))
		searchState := ""
		if len(parts) > 1 {
			searchState = strings.ToLower(strings.TrimSpace(parts[1]))
		}

		startMatch := locationMatchScore(searchCity, searchState,
			strings.ToLower(itinerary.StartLocation.City), strings.ToLower(itinerary.StartLocation.State))
		endMatch := locationMatchScore(searchCity, searchState,
			strings.ToLower(itinerary.EndLocation.City), strings.ToLower(itinerary.EndLocation.State))

		best = max(best, max(startMatch, endMatch))
	}
	return best * s.weights.LocationWeight
}

// locationMatchScore grades how well one requested location matches one
// itinerary endpoint. Checks run strictest first.
func locationMatchScore(searchCity, searchState, itineraryCity, itineraryState string) float64 {
	if searchCity == itineraryCity && searchState == itineraryState {
		return 1.0
	}
	if searchCity == itineraryCity {
		return 0.7
	}
	if searchState == itineraryState && searchState != "" {
		return 0.3
	}
	if strings.Contains(itineraryCity, searchCity) || strings.Contains(searchCity, itineraryCity) {
		return 0.5
	}
	return 0
}

func (s *ServiceImpl) scoreActivities(ctx context.Context, itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	if len(query.Activities) == 0 {
		// No preference stated: partial credit for having activities at all.
		if itinerary.Days.CountActivities() > 0 {
			return s.weights.ActivityWeight * 0.5
		}
		return 0
	}

	ids := itinerary.Days.ActivityIDs()
	if len(ids) == 0 {
		return 0
	}

	resolved, err := s.resolvedActivities(ctx, itinerary)
	if err != nil {
		s.logger.Warn("Falling back to text matching, activity resolution failed",
			zap.String("trip_name", itinerary.TripName),
			zap.Any("error", err),
		)
		return s.scoreActivitiesFallback(itinerary, query)
	}

	matched := 0
	for _, requested := range query.Activities {
		term := strings.ToLower(requested)
		if s.anyActivityMatches(term, resolved) {
			matched++
		}
	}
	return float64(matched) / float64(len(query.Activities)) * s.weights.ActivityWeight
}

// anyActivityMatches reports whether the search term matches any resolved
// activity's types, tags, title or description, directly or via synonyms.
func (s *ServiceImpl) anyActivityMatches(term string, resolved []models.Activity) bool {
	for i := range resolved {
		activity := &resolved[i]
		for _, activityType := range activity.ActivityTypes {
			text := strings.ToLower(activityType)
			if strings.Contains(text, term) || s.matchesSynonyms(term, text) {
				return true
			}
		}
		for _, tag := range activity.Tags {
			text := strings.ToLower(tag)
			if strings.Contains(text, term) || s.matchesSynonyms(term, text) {
				return true
			}
		}
		title := strings.ToLower(activity.Title)
		description := strings.ToLower(activity.Description)
		if strings.Contains(title, term) || strings.Contains(description, term) ||
			s.matchesSynonyms(term, title) || s.matchesSynonyms(term, description) {
			return true
		}
	}
	return false
}

// scoreActivitiesFallback matches search terms against the itinerary's own
// text when the activity catalog cannot be read.
func (s *ServiceImpl) scoreActivitiesFallback(itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	if len(query.Activities) == 0 {
		return 0
	}

	name := strings.ToLower(itinerary.TripName)
	description := strings.ToLower(itinerary.Description)

	matched := 0
	for _, requested := range query.Activities {
		term := strings.ToLower(requested)
		if strings.Contains(name, term) || strings.Contains(description, term) ||
			s.matchesSynonyms(term, name) || s.matchesSynonyms(term, description) {
			matched++
		}
	}
	return float64(matched) / float64(len(query.Activities)) * s.weights.ActivityWeight
}

func (s *ServiceImpl) scoreGroupSize(itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	total, ok := query.TotalPartySize()
	if !ok {
		return 0
	}

	switch {
	case total >= itinerary.MinGroup && total <= itinerary.MaxGroup:
		return s.weights.GroupSizeWeight
	case total == itinerary.MinGroup-1 || total == itinerary.MaxGroup+1:
		return s.weights.GroupSizeWeight * 0.7
	case total >= itinerary.MinGroup-2 && total <= itinerary.MaxGroup+2:
		return s.weights.GroupSizeWeight * 0.4
	default:
		return 0
	}
}

func (s *ServiceImpl) scoreLodging(itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	if len(query.Lodging) == 0 {
		return 0
	}
	// Lodging types are not matched individually yet; having any
	// accommodation scheduled earns partial credit.
	if itinerary.Days.HasAccommodation() {
		return s.weights.LodgingWeight * 0.6
	}
	return 0
}

func (s *ServiceImpl) scoreTransportation(itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	if query.Transportation == nil {
		return 0
	}

	requested := strings.ToLower(*query.Transportation)
	names := itinerary.Days.TransportationNames()
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), requested) {
			return s.weights.TransportationWeight
		}
	}
	if len(names) > 0 {
		return s.weights.TransportationWeight * 0.3
	}
	return 0
}

func (s *ServiceImpl) scoreTripPace(itinerary *models.FeaturedVacation, query *models.SearchQuery) float64 {
	if query.TripPace == nil {
		// No pace preference, give partial credit.
		return s.weights.TripPaceWeight * 0.5
	}

	numDays := float64(len(itinerary.Days))
	if numDays == 0 {
		numDays = 1
	}
	totalActivities := float64(itinerary.Days.CountActivities())
	// Without per-activity durations, assume two hours each.
	totalHours := totalActivities * 2.0

	avgActivities := totalActivities / numDays
	avgHours := totalHours / numDays

	activityDiff := abs(avgActivities - float64(query.TripPace.TypicalActivitiesPerDay()))
	activityMatch := 0.2
	switch {
	case activityDiff <= 0.5:
		activityMatch = 1.0
	case activityDiff <= 1.0:
		activityMatch = 0.8
	case activityDiff <= 2.0:
		activityMatch = 0.5
	}

	hoursDiff := abs(avgHours - query.TripPace.MaxActivityHoursPerDay())
	hoursMatch := 0.2
	switch {
	case hoursDiff <= 1.0:
		hoursMatch = 1.0
	case hoursDiff <= 2.0:
		hoursMatch = 0.8
	case hoursDiff <= 3.0:
		hoursMatch = 0.5
	}

	return (activityMatch + hoursMatch) / 2.0 * s.weights.TripPaceWeight
}

// resolvedActivities fetches the itinerary's activity documents, memoized per
// itinerary ID so ranking many overlapping itineraries stays cheap.
func (s *ServiceImpl) resolvedActivities(ctx context.Context, itinerary *models.FeaturedVacation) ([]models.Activity, error) {
	var key string
	if itinerary.ID != nil {
		key = "activities:" + itinerary.ID.Hex()
		if cached, found := s.cache.Get(key); found {
			return cached.([]models.Activity), nil
		}
	}

	resolved, err := s.activities.FindByIDs(ctx, itinerary.Days.ActivityIDs())
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.cache.Set(key, resolved, cache.DefaultExpiration)
	}
	return resolved, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
