package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cairntrips/cairn/internal/app/domain/activities"
	"github.com/cairntrips/cairn/internal/app/domain/discovery"
	"github.com/cairntrips/cairn/internal/app/domain/distance"
	"github.com/cairntrips/cairn/internal/app/domain/pricing"
	"github.com/cairntrips/cairn/internal/app/domain/routing"
	"github.com/cairntrips/cairn/internal/app/models"
	appmetrics "github.com/cairntrips/cairn/internal/observability/metrics"
	"github.com/cairntrips/cairn/internal/pkg/cache"
)

const (
	arrivalClock   = "09:00:00"
	departureClock = "17:00:00"
	arrivalName    = "Arrival and Check-in"
	departureName  = "Check-out and Departure"

	generatedTag = "generated"

	// Fixed-spacing fallback used when route optimization is unavailable.
	fallbackActivitiesPerDay = 3
	fallbackSpacingHours     = 2

	defaultStartHour     = 10
	defaultBufferMinutes = 30

	// Rotating the candidate pool by a prime step makes consecutive
	// variations start their greedy walk on different activities.
	variationRotationStep = 7
)

// nameTemplates are cycled by GenerateUnique so repeated generations from
// the same query do not collide on trip names.
var nameTemplates = []string{
	"%s Adventure",
	"Discover %s",
	"%s Explorer",
	"Experience %s",
	"%s Getaway",
	"%s Escape",
	"Journey Through %s",
	"Best of %s",
}

var (
	variationStartHours    = []int{9, 10, 11}
	variationBufferMinutes = []int{30, 45, 60}
)

var _ Service = (*ServiceImpl)(nil)

// Service builds brand new itineraries when the catalog cannot satisfy a
// search.
type Service interface {
	Generate(ctx context.Context, query *models.SearchQuery) (*models.FeaturedVacation, error)

	// GenerateUnique varies the trip name, candidate order and day shape by
	// variationIndex so a generation loop produces visibly distinct results.
	// existingNames holds trip names already taken; it is read, not updated.
	GenerateUnique(ctx context.Context, query *models.SearchQuery, variationIndex int, existingNames map[string]struct{}) (*models.FeaturedVacation, error)
}

type ServiceImpl struct {
	logger     *zap.Logger
	activities activities.Repository
	// discovery is nil when the semantic index is not configured; the
	// catalog fallback covers that.
	discovery discovery.Service
	routes    routing.Service
	cache     *cache.CacheManager
}

func NewServiceImpl(activityRepo activities.Repository, discoveryService discovery.Service, routeService routing.Service, cacheManager *cache.CacheManager, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		activities: activityRepo,
		discovery:  discoveryService,
		routes:     routeService,
		cache:      cacheManager,
	}
}

// variation bundles the knobs GenerateUnique turns per attempt. nameIndex
// below zero means the plain targeted trip name.
type variation struct {
	rotation      int
	startHour     int
	bufferMinutes int
	nameIndex     int
	existingNames map[string]struct{}
}

func (s *ServiceImpl) Generate(ctx context.Context, query *models.SearchQuery) (*models.FeaturedVacation, error) {
	return s.generate(ctx, query, variation{
		startHour:     defaultStartHour,
		bufferMinutes: defaultBufferMinutes,
		nameIndex:     -1,
	})
}

func (s *ServiceImpl) GenerateUnique(ctx context.Context, query *models.SearchQuery, variationIndex int, existingNames map[string]struct{}) (*models.FeaturedVacation, error) {
	if variationIndex < 0 {
		variationIndex = 0
	}
	return s.generate(ctx, query, variation{
		rotation:      variationRotationStep * variationIndex,
		startHour:     variationStartHours[variationIndex%len(variationStartHours)],
		bufferMinutes: variationBufferMinutes[variationIndex%len(variationBufferMinutes)],
		nameIndex:     variationIndex % len(nameTemplates),
		existingNames: existingNames,
	})
}

func (s *ServiceImpl) generate(ctx context.Context, query *models.SearchQuery, v variation) (*models.FeaturedVacation, error) {
	ctx, span := otel.Tracer("GenerationService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.Int("generation.rotation", v.rotation),
		attribute.Int("generation.start_hour", v.startHour),
	))
	defer span.End()

	l := s.logger.With(zap.String("method", "Generate"))
	appmetrics.Get().GenerationAttemptsTotal.Add(ctx, 1)

	candidates, err := s.fetchCandidates(ctx, query)
	if err != nil {
		appmetrics.Get().GenerationFailuresTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Candidate fetch failed")
		return nil, fmt.Errorf("error fetching generation candidates: %w", err)
	}
	if len(candidates) == 0 {
		appmetrics.Get().GenerationFailuresTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, "No candidates")
		return nil, models.ErrNoActivitiesFound
	}

	arrival, departure, err := TripDates(query)
	if err != nil {
		appmetrics.Get().GenerationFailuresTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad trip dates")
		return nil, err
	}
	lengthDays := TripLengthDays(arrival, departure)

	// Candidates without a catalog identity get one minted so the used-set
	// and the day items can reference them.
	for i := range candidates {
		if candidates[i].ID == nil {
			id := primitive.NewObjectID()
			candidates[i].ID = &id
		}
	}
	candidates = rotate(candidates, v.rotation)

	start, end := tripEndpoints(query.Locations)
	startPoint := routing.CityPoint(start.City, start.State)
	profile := paceProfileFor(query)

	days := make(models.Days, lengthDays)
	used := make(map[primitive.ObjectID]struct{})
	for dayNum := 1; dayNum <= lengthDays; dayNum++ {
		isFirst := dayNum == 1
		isLast := dayNum == lengthDays

		var items []models.DayItem
		if isFirst {
			items = append(items, models.NewTransportationItem(arrivalClock, models.ItemLocation{
				Name:        locationName(start),
				Coordinates: start.Coordinates,
			}, arrivalName))
		}

		dayActivities := pickDayActivities(candidates, used, profile, v.bufferMinutes)
		items = append(items, s.scheduleDay(ctx, dayActivities, startPoint, isFirst, isLast, v.startHour)...)

		if isLast {
			items = append(items, models.NewTransportationItem(departureClock, models.ItemLocation{
				Name:        locationName(end),
				Coordinates: end.Coordinates,
			}, departureName))
		}

		days[models.DayKey(dayNum)] = items
	}

	subject := tripSubject(start, end, query.Activities)
	name := subject + " Adventure"
	if v.nameIndex >= 0 {
		name = uniqueName(subject, v.nameIndex, v.existingNames)
	}

	adults := 1
	if query.Adults != nil && *query.Adults > 0 {
		adults = *query.Adults
	}
	children := 0
	if query.Children != nil {
		children = *query.Children
	}
	infants := 0
	if query.Infants != nil {
		infants = *query.Infants
	}
	pets := 0
	tag := generatedTag

	personCost := pricing.ScheduledActivityCost(days, candidates)
	now := time.Now().UTC()
	id := primitive.NewObjectID()

	itinerary := &models.FeaturedVacation{
		ID:                &id,
		TripName:          name,
		MinGroup:          adults,
		MaxGroup:          adults + children + infants,
		LengthDays:        lengthDays,
		LengthHours:       lengthDays * 24,
		StartLocation:     start,
		EndLocation:       end,
		Description:       targetedDescription(candidates, start, end, query.Activities),
		Days:              days,
		ArrivalDatetime:   &arrival,
		DepartureDatetime: &departure,
		Adults:            query.Adults,
		Children:          query.Children,
		Infants:           query.Infants,
		Pets:              &pets,
		Lodging:           query.Lodging,
		Transportation:    query.Transportation,
		PersonCost:        &personCost,
		Activities:        activitySummaries(days, candidates),
		CreatedAt:         &now,
		UpdatedAt:         &now,
		Tag:               &tag,
	}

	l.Info("Generated itinerary",
		zap.String("trip_name", itinerary.TripName),
		zap.Int("length_days", lengthDays),
		zap.Int("activities", itinerary.Days.CountActivities()),
	)
	span.SetAttributes(
		attribute.Int("generation.length_days", lengthDays),
		attribute.Int("generation.scheduled_activities", itinerary.Days.CountActivities()),
	)
	span.SetStatus(codes.Ok, "Itinerary generated")
	return itinerary, nil
}

// fetchCandidates tries the semantic index first and falls back to the
// tiered catalog fetch. Semantic errors are logged, never propagated.
// Catalog reads are memoized per cities+terms; cached slices are copied in
// and out because generation mints IDs onto its candidates.
func (s *ServiceImpl) fetchCandidates(ctx context.Context, query *models.SearchQuery) ([]models.Activity, error) {
	if s.discovery != nil {
		found, err := s.discovery.SearchActivities(ctx, query.Activities, strings.Join(query.Locations, " "))
		if err != nil {
			s.logger.Warn("Semantic search unavailable, using the catalog", zap.Any("error", err))
		} else if len(found) > 0 {
			return found, nil
		}
	}

	cities := cityNames(query.Locations)
	key := cache.NewCacheKeyBuilder(s.logger).
		AddLocations(cities).
		AddActivities(query.Activities).
		BuildOrDefault()
	if key != "" {
		if cached, ok := s.cache.Activities.Get(key); ok {
			return append([]models.Activity(nil), cached...), nil
		}
	}

	found, err := s.activities.FindCandidates(ctx, cities, query.Activities)
	if err != nil {
		return nil, err
	}
	if key != "" && len(found) > 0 {
		s.cache.Activities.Set(key, append([]models.Activity(nil), found...))
	}
	return found, nil
}

// cityNames extracts the city part of each "City, State" location string.
func cityNames(locations []string) []string {
	cities := make([]string, 0, len(locations))
	for _, location := range locations {
		city, _ := routing.ParseCityState(location)
		if city != "" {
			cities = append(cities, city)
		}
	}
	return cities
}

// paceProfile is the per-day activity budget derived from the trip pace.
type paceProfile struct {
	maxActivities int
	maxHours      float64
}

func paceProfileFor(query *models.SearchQuery) paceProfile {
	pace := models.PaceModerate
	if query.TripPace != nil {
		pace = *query.TripPace
	}
	return paceProfile{
		maxActivities: pace.TypicalActivitiesPerDay(),
		maxHours:      pace.MaxActivityHoursPerDay(),
	}
}

// pickDayActivities fills one day from the not-yet-used candidates. Each
// pick consumes its duration plus the inter-activity buffer against the
// day's hour budget; candidates that would not fit are skipped in favor of
// later, shorter ones. Marks picks in used, so an activity appears at most
// once across the whole itinerary.
func pickDayActivities(candidates []models.Activity, used map[primitive.ObjectID]struct{}, profile paceProfile, bufferMinutes int) []models.Activity {
	budgetMinutes := profile.maxHours * 60
	spent := 0.0

	var day []models.Activity
	for i := range candidates {
		if len(day) >= profile.maxActivities || spent >= budgetMinutes {
			break
		}
		if _, taken := used[*candidates[i].ID]; taken {
			continue
		}
		cost := float64(activityDuration(candidates[i]) + bufferMinutes)
		if spent+cost > budgetMinutes {
			continue
		}
		day = append(day, candidates[i])
		used[*candidates[i].ID] = struct{}{}
		spent += cost
	}
	return day
}

// activityDuration assumes two hours when the catalog has no duration.
func activityDuration(activity models.Activity) int {
	if activity.DurationMinutes > 0 {
		return activity.DurationMinutes
	}
	return 120
}

// scheduleDay orders and times one day's activities through the route
// optimizer, with fixed-interval spacing as the failure fallback.
func (s *ServiceImpl) scheduleDay(ctx context.Context, dayActivities []models.Activity, start distance.Point, isFirst, isLast bool, startHour int) []models.DayItem {
	if len(dayActivities) == 0 {
		return nil
	}

	optimized, err := s.routes.OptimizeDay(ctx, dayActivities, start, isFirst, isLast)
	if err != nil {
		s.logger.Warn("Route optimization failed, using fixed spacing",
			zap.Int("activities", len(dayActivities)),
			zap.Any("error", err),
		)
		return fallbackSchedule(dayActivities, startHour)
	}

	items := make([]models.DayItem, 0, len(optimized))
	for _, stop := range optimized {
		items = append(items, models.NewActivityItem(stop.ScheduledClock(), *stop.Activity.ID))
	}
	return items
}

func fallbackSchedule(dayActivities []models.Activity, startHour int) []models.DayItem {
	limit := min(len(dayActivities), fallbackActivitiesPerDay)
	items := make([]models.DayItem, 0, limit)
	for i := 0; i < limit; i++ {
		clock := fmt.Sprintf("%02d:00:00", startHour+fallbackSpacingHours*i)
		items = append(items, models.NewActivityItem(clock, *dayActivities[i].ID))
	}
	return items
}

// tripEndpoints derives start and end locations from the requested location
// strings: one location serves as both endpoints, several use the first and
// last. No locations at all centers the trip on the default map point.
func tripEndpoints(locations []string) (models.Location, models.Location) {
	if len(locations) == 0 {
		fallback := models.Location{
			Coordinates: [2]float64{routing.DefaultPoint.Lat, routing.DefaultPoint.Lng},
		}
		return fallback, fallback
	}

	caser := cases.Title(language.AmericanEnglish)
	build := func(raw string) models.Location {
		city, state := routing.ParseCityState(raw)
		point := routing.CityPoint(city, state)
		if len(state) == 2 {
			state = strings.ToUpper(state)
		} else {
			state = caser.String(strings.ToLower(state))
		}
		return models.Location{
			City:        caser.String(strings.ToLower(city)),
			State:       state,
			Coordinates: [2]float64{point.Lat, point.Lng},
		}
	}
	return build(locations[0]), build(locations[len(locations)-1])
}

func locationName(location models.Location) string {
	switch {
	case location.City == "":
		return location.State
	case location.State == "":
		return location.City
	default:
		return location.City + ", " + location.State
	}
}

// tripSubject is the "{place} {activities}" phrase shared by the targeted
// trip name and the name templates.
func tripSubject(start, end models.Location, terms []string) string {
	var parts []string
	if place := placePhrase(start, end); place != "" {
		parts = append(parts, place)
	}
	if phrase := activityPhrase(terms); phrase != "" {
		parts = append(parts, phrase)
	}
	if len(parts) == 0 {
		return "Colorado"
	}
	return strings.Join(parts, " ")
}

func placePhrase(start, end models.Location) string {
	if start.City == end.City {
		return start.City
	}
	return start.City + " to " + end.City
}

func activityPhrase(terms []string) string {
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return terms[0]
	case 2:
		return terms[0] + " and " + terms[1]
	default:
		return terms[0] + ", " + terms[1] + ", and more"
	}
}

// uniqueName fills the template selected by the variation index, walking
// forward through the other templates on collision. When every template is
// taken the preferred one gets a timestamp suffix.
func uniqueName(subject string, nameIndex int, existingNames map[string]struct{}) string {
	for offset := 0; offset < len(nameTemplates); offset++ {
		candidate := fmt.Sprintf(nameTemplates[(nameIndex+offset)%len(nameTemplates)], subject)
		if _, taken := existingNames[candidate]; !taken {
			return candidate
		}
	}
	return fmt.Sprintf("%s (%d)", fmt.Sprintf(nameTemplates[nameIndex], subject), time.Now().Unix())
}

func targetedDescription(candidates []models.Activity, start, end models.Location, terms []string) string {
	region := start.City
	if region == "" {
		region = "Colorado"
	}

	var parts []string
	if start.City == end.City {
		parts = append(parts, fmt.Sprintf("Discover the best of %s with this expertly crafted itinerary", region))
	} else {
		parts = append(parts, fmt.Sprintf("Experience an unforgettable journey from %s to %s", start.City, end.City))
	}
	if len(terms) > 0 {
		parts = append(parts, fmt.Sprintf("featuring %s activities", strings.Join(terms, ", ")))
	}
	if types := distinctActivityTypes(candidates, 3); len(types) > 0 {
		parts = append(parts, fmt.Sprintf("including %s", strings.Join(types, ", ")))
	}
	parts = append(parts, "This carefully crafted itinerary combines adventure, relaxation, and local experiences to create memories that will last a lifetime.")
	return strings.Join(parts, ". ")
}

// distinctActivityTypes keeps first-seen order so descriptions are stable
// for a given candidate list.
func distinctActivityTypes(candidates []models.Activity, limit int) []string {
	seen := make(map[string]struct{})
	var types []string
	for i := range candidates {
		for _, activityType := range candidates[i].ActivityTypes {
			if _, ok := seen[activityType]; ok {
				continue
			}
			seen[activityType] = struct{}{}
			types = append(types, activityType)
			if len(types) == limit {
				return types
			}
		}
	}
	return types
}

// activitySummaries flattens the scheduled activities into the label list
// persisted on the itinerary, in day order.
func activitySummaries(days models.Days, candidates []models.Activity) []models.ActivitySummary {
	byID := make(map[primitive.ObjectID]*models.Activity, len(candidates))
	for i := range candidates {
		byID[*candidates[i].ID] = &candidates[i]
	}

	summaries := []models.ActivitySummary{}
	for _, key := range days.SortedKeys() {
		for _, item := range days[key] {
			if item.Type != models.DayItemActivity {
				continue
			}
			activity, ok := byID[item.ActivityID]
			if !ok {
				continue
			}
			summaries = append(summaries, models.ActivitySummary{
				Time:  item.Time,
				Label: activity.Title,
				Tags:  activity.Tags,
			})
		}
	}
	return summaries
}

func rotate(candidates []models.Activity, n int) []models.Activity {
	if len(candidates) == 0 {
		return candidates
	}
	n %= len(candidates)
	if n == 0 {
		return candidates
	}
	rotated := make([]models.Activity, 0, len(candidates))
	rotated = append(rotated, candidates[n:]...)
	rotated = append(rotated, candidates[:n]...)
	return rotated
}
