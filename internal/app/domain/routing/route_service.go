package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cairntrips/cairn/internal/app/domain/distance"
	"github.com/cairntrips/cairn/internal/app/models"
)

// Strategy selects how a day's activities are ordered before scheduling.
type Strategy string

const (
	// StrategyMinimizeTotalTime solves a small TSP instance.
	StrategyMinimizeTotalTime Strategy = "minimize_total_time"
	// StrategyNearestFirst greedily visits the closest unvisited activity.
	StrategyNearestFirst Strategy = "nearest_first"
	// StrategyTimePreference puts outdoor activities first, then nearest.
	StrategyTimePreference Strategy = "time_preference"
)

// Brute force caps: all orderings for small sets, first permutationBudget
// orderings otherwise, nearest-neighbor beyond bruteForceLimit activities.
const (
	bruteForceLimit   = 6
	permutationBudget = 120
)

var outdoorKeywords = []string{
	"outdoor", "hiking", "beach", "park", "nature", "scenic", "wildlife", "fishing", "camping",
}

// Config tunes day scheduling. Times are minutes since midnight.
type Config struct {
	MaxActivitiesPerDay int
	MinMinutesBetween   int
	TravelTimeBuffer    float64
	DayStartMinutes     int
	DayEndMinutes       int
	FirstDayStart       int
	LastDayEnd          int
	ConsiderTraffic     bool
	Strategy            Strategy
}

func DefaultConfig() Config {
	return Config{
		MaxActivitiesPerDay: 4,
		MinMinutesBetween:   30,
		TravelTimeBuffer:    0.05,
		DayStartMinutes:     9 * 60,
		DayEndMinutes:       17 * 60,
		FirstDayStart:       10 * 60, // arrival day starts later
		LastDayEnd:          15 * 60, // departure day ends earlier
		ConsiderTraffic:     true,
		Strategy:            StrategyMinimizeTotalTime,
	}
}

// OptimizedActivity is one scheduled stop on a day's route.
type OptimizedActivity struct {
	Activity           models.Activity
	ScheduledMinutes   int
	TravelFromPrevious int
	Coordinates        distance.Point
}

// ScheduledClock renders the start time as HH:MM:SS.
func (a OptimizedActivity) ScheduledClock() string {
	return minutesToClock(a.ScheduledMinutes)
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d:00", m/60, m%60)
}

// RouteStats summarizes an optimized day.
type RouteStats struct {
	TotalActivities      int
	TotalTravelMinutes   int
	TotalActivityMinutes int
	TotalDayMinutes      int
	StartClock           string
	EndClock             string
	EfficiencyRatio      float64
}

var _ Service = (*ServiceImpl)(nil)

// Service orders and schedules a day's activities around travel times.
type Service interface {
	OptimizeDay(ctx context.Context, activities []models.Activity, start distance.Point, isFirstDay, isLastDay bool) ([]OptimizedActivity, error)
	Stats(activities []OptimizedActivity) RouteStats
}

type ServiceImpl struct {
	logger    *zap.Logger
	distances distance.Service
	config    Config
}

// NewServiceImpl wires the optimizer. A nil distance service switches every
// travel-time lookup to the haversine estimate.
func NewServiceImpl(distances distance.Service, logger *zap.Logger) *ServiceImpl {
	return NewServiceImplWithConfig(distances, DefaultConfig(), logger)
}

func NewServiceImplWithConfig(distances distance.Service, config Config, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		distances: distances,
		config:    config,
	}
}

func (s *ServiceImpl) OptimizeDay(ctx context.Context, activities []models.Activity, start distance.Point, isFirstDay, isLastDay bool) ([]OptimizedActivity, error) {
	ctx, span := otel.Tracer("RoutingService").Start(ctx, "OptimizeDay", trace.WithAttributes(
		attribute.Int("routing.activities", len(activities)),
		attribute.Bool("routing.first_day", isFirstDay),
		attribute.Bool("routing.last_day", isLastDay),
		attribute.String("routing.strategy", string(s.config.Strategy)),
	))
	defer span.End()

	if len(activities) == 0 {
		span.SetStatus(codes.Ok, "Nothing to optimize")
		return []OptimizedActivity{}, nil
	}

	l := s.logger.With(zap.String("method", "OptimizeDay"))
	l.Debug("Optimizing daily route", zap.Int("activities", len(activities)))

	dayStart := s.config.DayStartMinutes
	if isFirstDay {
		dayStart = s.config.FirstDayStart
	}
	dayEnd := s.config.DayEndMinutes
	if isLastDay {
		dayEnd = s.config.LastDayEnd
	}

	candidates := activities
	if len(candidates) > s.config.MaxActivitiesPerDay {
		candidates = candidates[:s.config.MaxActivitiesPerDay]
	}

	// Index 0 is the starting location; activity k maps to index k+1.
	points := make([]distance.Point, 0, len(candidates)+1)
	points = append(points, start)
	for i := range candidates {
		points = append(points, ActivityPoint(candidates[i]))
	}
	travel := s.travelMatrix(ctx, points)

	var order []int
	switch s.config.Strategy {
	case StrategyNearestFirst:
		order = nearestNeighborOrder(candidates, travel)
	case StrategyTimePreference:
		order = s.timePreferenceOrder(candidates, travel)
	default:
		order = s.minimalTravelOrder(candidates, travel)
	}

	scheduled := s.schedule(candidates, order, points, travel, dayStart, dayEnd)
	for _, item := range scheduled {
		l.Debug("Scheduled activity",
			zap.String("title", item.Activity.Title),
			zap.String("time", item.ScheduledClock()),
			zap.Int("travel_minutes", item.TravelFromPrevious))
	}

	span.SetAttributes(attribute.Int("routing.scheduled", len(scheduled)))
	span.SetStatus(codes.Ok, "Route optimized")
	return scheduled, nil
}

// travelMatrix precomputes pairwise travel minutes between all points with a
// single batched lookup, so the ordering strategies never hit the network in
// their inner loops.
func (s *ServiceImpl) travelMatrix(ctx context.Context, points []distance.Point) [][]int {
	n := len(points)
	matrix := make([][]int, n)
	for i := range matrix {
		matrix[i] = make([]int, n)
	}

	var results [][]models.DistanceResult
	if s.distances != nil {
		var err error
		results, err = s.distances.GetDistancesBatch(ctx, points, points, models.ModeDriving, s.config.ConsiderTraffic)
		if err != nil {
			s.logger.Warn("Batch travel lookup failed, estimating", zap.Any("error", err))
			results = nil
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if results != nil {
				if s.config.ConsiderTraffic {
					matrix[i][j] = results[i][j].BestDurationMinutes()
				} else {
					matrix[i][j] = results[i][j].DurationMinutes
				}
			} else {
				matrix[i][j] = distance.Estimate(points[i], points[j]).DurationMinutes
			}
		}
	}
	return matrix
}

// minimalTravelOrder solves the ordering as a tiny TSP: exhaustive for small
// sets, nearest-neighbor beyond that.
func (s *ServiceImpl) minimalTravelOrder(activities []models.Activity, travel [][]int) []int {
	if len(activities) <= 1 {
		return identityOrder(len(activities))
	}
	if len(activities) <= bruteForceLimit {
		return bruteForceOrder(activities, travel)
	}
	return nearestNeighborOrder(activities, travel)
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func bruteForceOrder(activities []models.Activity, travel [][]int) []int {
	best := identityOrder(len(activities))
	bestCost := -1

	perms := permutations(identityOrder(len(activities)))
	if len(perms) > permutationBudget {
		perms = perms[:permutationBudget]
	}

	for _, perm := range perms {
		cost := 0
		current := 0 // starting location
		for _, idx := range perm {
			cost += travel[current][idx+1]
			cost += activities[idx].DurationMinutes
			current = idx + 1
		}
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			best = perm
		}
	}
	return best
}

func nearestNeighborOrder(activities []models.Activity, travel [][]int) []int {
	n := len(activities)
	order := make([]int, 0, n)
	visited := make([]bool, n)
	current := 0

	for len(order) < n {
		nearest := -1
		nearestTime := -1
		for idx := 0; idx < n; idx++ {
			if visited[idx] {
				continue
			}
			t := travel[current][idx+1]
			if nearest < 0 || t < nearestTime {
				nearest = idx
				nearestTime = t
			}
		}
		visited[nearest] = true
		order = append(order, nearest)
		current = nearest + 1
	}
	return order
}

// timePreferenceOrder floats outdoor activities to the front, then routes
// nearest-neighbor through the reordered list.
func (s *ServiceImpl) timePreferenceOrder(activities []models.Activity, travel [][]int) []int {
	order := identityOrder(len(activities))
	sort.SliceStable(order, func(a, b int) bool {
		return isOutdoorActivity(activities[order[a]]) && !isOutdoorActivity(activities[order[b]])
	})

	reordered := make([]models.Activity, len(order))
	for pos, idx := range order {
		reordered[pos] = activities[idx]
	}
	// Remap travel rows/columns to the outdoor-first arrangement.
	remapped := make([][]int, len(travel))
	for i := range remapped {
		remapped[i] = make([]int, len(travel))
	}
	for i := 0; i < len(travel); i++ {
		for j := 0; j < len(travel); j++ {
			remapped[mapIndex(order, i)][mapIndex(order, j)] = travel[i][j]
		}
	}

	nn := nearestNeighborOrder(reordered, remapped)
	final := make([]int, len(nn))
	for pos, idx := range nn {
		final[pos] = order[idx]
	}
	return final
}

// mapIndex translates a travel-matrix index (0 = start) through an activity
// permutation.
func mapIndex(order []int, i int) int {
	if i == 0 {
		return 0
	}
	for pos, idx := range order {
		if idx == i-1 {
			return pos + 1
		}
	}
	return i
}

func isOutdoorActivity(activity models.Activity) bool {
	matches := func(values []string) bool {
		for _, v := range values {
			lower := strings.ToLower(v)
			for _, keyword := range outdoorKeywords {
				if strings.Contains(lower, keyword) {
					return true
				}
			}
		}
		return false
	}
	return matches(activity.ActivityTypes) || matches(activity.Tags)
}

// schedule walks the chosen order, inflating travel by the buffer and
// flooring it at the configured minimum. The first activity that would end
// past dayEnd stops the day.
func (s *ServiceImpl) schedule(activities []models.Activity, order []int, points []distance.Point, travel [][]int, dayStart, dayEnd int) []OptimizedActivity {
	scheduled := make([]OptimizedActivity, 0, len(order))
	currentTime := dayStart
	currentIdx := 0

	for _, idx := range order {
		travelTime := travel[currentIdx][idx+1]
		buffered := int(float64(travelTime) * (1.0 + s.config.TravelTimeBuffer))
		if buffered < s.config.MinMinutesBetween {
			buffered = s.config.MinMinutesBetween
		}

		startAt := currentTime + buffered
		endAt := startAt + activities[idx].DurationMinutes
		if endAt > dayEnd {
			break
		}

		scheduled = append(scheduled, OptimizedActivity{
			Activity:           activities[idx],
			ScheduledMinutes:   startAt,
			TravelFromPrevious: buffered,
			Coordinates:        points[idx+1],
		})
		currentTime = endAt
		currentIdx = idx + 1
	}
	return scheduled
}

func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{append([]int(nil), items...)}
	}

	var result [][]int
	for i := range items {
		remaining := make([]int, 0, len(items)-1)
		remaining = append(remaining, items[:i]...)
		remaining = append(remaining, items[i+1:]...)
		for _, perm := range permutations(remaining) {
			result = append(result, append([]int{items[i]}, perm...))
		}
	}
	return result
}

func (s *ServiceImpl) Stats(activities []OptimizedActivity) RouteStats {
	stats := RouteStats{TotalActivities: len(activities)}
	for _, a := range activities {
		stats.TotalTravelMinutes += a.TravelFromPrevious
		stats.TotalActivityMinutes += a.Activity.DurationMinutes
	}
	stats.TotalDayMinutes = stats.TotalTravelMinutes + stats.TotalActivityMinutes

	if len(activities) > 0 {
		stats.StartClock = activities[0].ScheduledClock()
		last := activities[len(activities)-1]
		stats.EndClock = minutesToClock(last.ScheduledMinutes + last.Activity.DurationMinutes)
	}
	if stats.TotalDayMinutes > 0 {
		stats.EfficiencyRatio = float64(stats.TotalActivityMinutes) / float64(stats.TotalDayMinutes)
	}
	return stats
}
