package models

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TripPace describes how packed a traveler wants each day to be.
type TripPace string

const (
	PaceRelaxed   TripPace = "relaxed"
	PaceModerate  TripPace = "moderate"
	PaceAdventure TripPace = "adventure"
)

// MaxActivityHoursPerDay returns the activity-hour ceiling for the pace.
func (p TripPace) MaxActivityHoursPerDay() float64 {
	switch p {
	case PaceRelaxed:
		return 4.0
	case PaceAdventure:
		return 10.0
	default:
		return 6.0
	}
}

// TypicalActivitiesPerDay returns the expected activity count for the pace.
func (p TripPace) TypicalActivitiesPerDay() int {
	switch p {
	case PaceRelaxed:
		return 2
	case PaceAdventure:
		return 5
	default:
		return 3
	}
}

// UnmarshalJSON rejects pace values outside the known set.
func (p *TripPace) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch TripPace(s) {
	case PaceRelaxed, PaceModerate, PaceAdventure:
		*p = TripPace(s)
		return nil
	default:
		return fmt.Errorf("unknown trip pace %q", s)
	}
}

// SearchQuery is the traveler's search criteria. Every field is optional;
// empty criteria simply contribute nothing to the match score.
type SearchQuery struct {
	ID                *primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID            *primitive.ObjectID `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Locations         []string            `json:"locations,omitempty" bson:"locations,omitempty"`
	ArrivalDatetime   *string             `json:"arrival_datetime,omitempty" bson:"arrival_datetime,omitempty"`
	DepartureDatetime *string             `json:"departure_datetime,omitempty" bson:"departure_datetime,omitempty"`
	Adults            *int                `json:"adults,omitempty" bson:"adults,omitempty"`
	Children          *int                `json:"children,omitempty" bson:"children,omitempty"`
	Infants           *int                `json:"infants,omitempty" bson:"infants,omitempty"`
	Activities        []string            `json:"activities,omitempty" bson:"activities,omitempty"`
	Lodging           []string            `json:"lodging,omitempty" bson:"lodging,omitempty"`
	Transportation    *string             `json:"transportation,omitempty" bson:"transportation,omitempty"`
	TripPace          *TripPace           `json:"trip_pace,omitempty" bson:"trip_pace,omitempty"`
}

// TotalPartySize sums adults, children and infants. The second return is
// false when adults is unset, in which case group scoring is skipped.
func (q *SearchQuery) TotalPartySize() (int, bool) {
	if q.Adults == nil {
		return 0, false
	}
	total := *q.Adults
	if q.Children != nil {
		total += *q.Children
	}
	if q.Infants != nil {
		total += *q.Infants
	}
	return total, true
}

// HasDates reports whether both travel dates are present and non-empty.
func (q *SearchQuery) HasDates() bool {
	return q.ArrivalDatetime != nil && *q.ArrivalDatetime != "" &&
		q.DepartureDatetime != nil && *q.DepartureDatetime != ""
}

// SearchWeights holds the point budget for each scoring dimension plus the
// cutoff below which results are dropped.
type SearchWeights struct {
	LocationWeight       float64 `json:"location_weight"`
	ActivityWeight       float64 `json:"activity_weight"`
	GroupSizeWeight      float64 `json:"group_size_weight"`
	LodgingWeight        float64 `json:"lodging_weight"`
	TransportationWeight float64 `json:"transportation_weight"`
	TripPaceWeight       float64 `json:"trip_pace_weight"`
	MinimumScore         float64 `json:"minimum_score"`
}

// DefaultSearchWeights returns the standard scoring budget.
func DefaultSearchWeights() SearchWeights {
	return SearchWeights{
		LocationWeight:       35.0,
		ActivityWeight:       30.0,
		GroupSizeWeight:      15.0,
		LodgingWeight:        5.0,
		TransportationWeight: 3.0,
		TripPaceWeight:       12.0,
		MinimumScore:         15.0,
	}
}

// MaxPossibleScore is the sum of all dimension weights.
func (w SearchWeights) MaxPossibleScore() float64 {
	return w.LocationWeight + w.ActivityWeight + w.GroupSizeWeight +
		w.LodgingWeight + w.TransportationWeight + w.TripPaceWeight
}

// ScoreBreakdown carries the per-dimension points awarded to one itinerary.
type ScoreBreakdown struct {
	LocationScore       float64 `json:"location_score"`
	ActivityScore       float64 `json:"activity_score"`
	GroupSizeScore      float64 `json:"group_size_score"`
	LodgingScore        float64 `json:"lodging_score"`
	TransportationScore float64 `json:"transportation_score"`
	TripPaceScore       float64 `json:"trip_pace_score"`
}

// ScoredItinerary pairs an itinerary with its match score.
type ScoredItinerary struct {
	Itinerary      FeaturedVacation `json:"itinerary"`
	TotalScore     float64          `json:"total_score"`
	ScoreBreakdown ScoreBreakdown   `json:"score_breakdown"`
}
