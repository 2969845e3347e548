package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PopulatedDayItem is a day item with catalog references resolved. Activity
// and accommodation variants keep the reference ID alongside the resolved
// document for backward compatibility.
type PopulatedDayItem struct {
	Type DayItemType
	Time string

	Location *ItemLocation
	Name     string

	ActivityID    *primitive.ObjectID
	Activity      *Activity
	Accommodation *Accommodation
}

// MarshalJSON flattens the resolved document into the item the way the wire
// format expects.
func (p PopulatedDayItem) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case DayItemTransportation:
		return json.Marshal(struct {
			Type     DayItemType   `json:"type"`
			Time     string        `json:"time"`
			Location *ItemLocation `json:"location"`
			Name     string        `json:"name"`
		}{p.Type, p.Time, p.Location, p.Name})
	case DayItemActivity:
		return json.Marshal(struct {
			Type       DayItemType         `json:"type"`
			Time       string              `json:"time"`
			ActivityID *primitive.ObjectID `json:"activity_id,omitempty"`
			*Activity
		}{p.Type, p.Time, p.ActivityID, p.Activity})
	case DayItemAccommodation:
		return json.Marshal(struct {
			Type DayItemType `json:"type"`
			Time string      `json:"time"`
			*Accommodation
		}{p.Type, p.Time, p.Accommodation})
	default:
		return nil, fmt.Errorf("populated day item has unknown type %q", p.Type)
	}
}

// PopulatedItinerary is a catalog itinerary with every day item resolved
// against the activity and lodging catalogs.
type PopulatedItinerary struct {
	FeaturedVacation
	PopulatedDays map[string][]PopulatedDayItem `json:"days"`
}

// MarshalJSON writes the base itinerary with its days replaced by the
// populated form.
func (p PopulatedItinerary) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(p.FeaturedVacation)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	days, err := json.Marshal(p.PopulatedDays)
	if err != nil {
		return nil, err
	}
	out["days"] = days
	return json.Marshal(out)
}

// ActivitySummary is a flat view of one scheduled activity, ordered the way
// it appears inside the itinerary days.
type ActivitySummary struct {
	Time  string   `json:"time" bson:"time"`
	Label string   `json:"label" bson:"label"`
	Tags  []string `json:"tags" bson:"tags"`
}

// SearchDayItem is the simplified day item used inside search responses.
// Activity and accommodation variants carry only the reference ID.
type SearchDayItem struct {
	Type DayItemType
	Time string

	Location *ItemLocation
	Name     string

	ActivityID      primitive.ObjectID
	AccommodationID primitive.ObjectID
}

// MarshalJSON emits only the fields of the active variant.
func (s SearchDayItem) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case DayItemTransportation:
		return json.Marshal(struct {
			Type     DayItemType   `json:"type"`
			Time     string        `json:"time"`
			Location *ItemLocation `json:"location"`
			Name     string        `json:"name"`
		}{s.Type, s.Time, s.Location, s.Name})
	case DayItemActivity:
		return json.Marshal(struct {
			Type       DayItemType        `json:"type"`
			Time       string             `json:"time"`
			ActivityID primitive.ObjectID `json:"activity_id"`
		}{s.Type, s.Time, s.ActivityID})
	case DayItemAccommodation:
		return json.Marshal(struct {
			Type            DayItemType        `json:"type"`
			Time            string             `json:"time"`
			AccommodationID primitive.ObjectID `json:"accommodation_id"`
		}{s.Type, s.Time, s.AccommodationID})
	default:
		return nil, fmt.Errorf("search day item has unknown type %q", s.Type)
	}
}

// SearchResponseItem is one ranked result returned by the search endpoints.
// Scores are normalized to a 0-100 scale before they land here.
type SearchResponseItem struct {
	ID             primitive.ObjectID         `json:"_id"`
	FareharborID   *int                       `json:"fareharbor_id,omitempty"`
	TripName       string                     `json:"trip_name"`
	MinAge         *int                       `json:"min_age,omitempty"`
	MinGroup       int                        `json:"min_group"`
	MaxGroup       int                        `json:"max_group"`
	LengthDays     int                        `json:"length_days"`
	LengthHours    int                        `json:"length_hours"`
	StartLocation  Location                   `json:"start_location"`
	EndLocation    Location                   `json:"end_location"`
	Description    string                     `json:"description"`
	Images         []string                   `json:"images"`
	CreatedAt      *time.Time                 `json:"created_at,omitempty"`
	UpdatedAt      *time.Time                 `json:"updated_at,omitempty"`
	PersonCost     float64                    `json:"person_cost"`
	Days           map[string][]SearchDayItem `json:"days"`
	Activities     []ActivitySummary          `json:"activities"`
	MatchScore     *uint8                     `json:"match_score,omitempty"`
	ScoreBreakdown *ScoreBreakdown            `json:"score_breakdown,omitempty"`
}

