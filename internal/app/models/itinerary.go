package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClockTimeLayout is the wire format for times of day inside itinerary days.
const ClockTimeLayout = "15:04:05"

// Location is a city-level place with point coordinates as [latitude, longitude].
type Location struct {
	City        string     `json:"city" bson:"city"`
	State       string     `json:"state" bson:"state"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

// Latitude returns the first coordinate component.
func (l Location) Latitude() float64 { return l.Coordinates[0] }

// Longitude returns the second coordinate component.
func (l Location) Longitude() float64 { return l.Coordinates[1] }

// ItemLocation is a named point used by transportation day items.
type ItemLocation struct {
	Name        string     `json:"name" bson:"name"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

// DayItemType discriminates the variants of a DayItem.
type DayItemType string

const (
	DayItemTransportation DayItemType = "transportation"
	DayItemActivity       DayItemType = "activity"
	DayItemAccommodation  DayItemType = "accommodation"
)

// DayItem is a single scheduled entry inside an itinerary day. Exactly one
// variant's fields are populated depending on Type: transportation carries a
// named location, activity and accommodation carry catalog references.
type DayItem struct {
	Type DayItemType `json:"type" bson:"type"`
	Time string      `json:"time" bson:"time"`

	Location *ItemLocation `json:"location,omitempty" bson:"location,omitempty"`
	Name     string        `json:"name,omitempty" bson:"name,omitempty"`

	ActivityID primitive.ObjectID `json:"activity_id,omitempty" bson:"activity_id,omitempty"`

	AccommodationID primitive.ObjectID `json:"accommodation_id,omitempty" bson:"accommodation_id,omitempty"`
}

// NewTransportationItem builds a transportation day item at the given clock time.
func NewTransportationItem(clockTime string, location ItemLocation, name string) DayItem {
	return DayItem{
		Type:     DayItemTransportation,
		Time:     clockTime,
		Location: &location,
		Name:     name,
	}
}

// NewActivityItem builds an activity day item referencing a catalog activity.
func NewActivityItem(clockTime string, activityID primitive.ObjectID) DayItem {
	return DayItem{
		Type:       DayItemActivity,
		Time:       clockTime,
		ActivityID: activityID,
	}
}

// NewAccommodationItem builds an accommodation day item referencing a lodging document.
func NewAccommodationItem(clockTime string, accommodationID primitive.ObjectID) DayItem {
	return DayItem{
		Type:            DayItemAccommodation,
		Time:            clockTime,
		AccommodationID: accommodationID,
	}
}

// MarshalJSON emits only the fields of the active variant. The stdlib encoder
// cannot treat a zero ObjectID as empty, so each variant is written explicitly.
func (d DayItem) MarshalJSON() ([]byte, error) {
	switch d.Type {
	case DayItemTransportation:
		return json.Marshal(struct {
			Type     DayItemType   `json:"type"`
			Time     string        `json:"time"`
			Location *ItemLocation `json:"location"`
			Name     string        `json:"name"`
		}{d.Type, d.Time, d.Location, d.Name})
	case DayItemActivity:
		return json.Marshal(struct {
			Type       DayItemType        `json:"type"`
			Time       string             `json:"time"`
			ActivityID primitive.ObjectID `json:"activity_id"`
		}{d.Type, d.Time, d.ActivityID})
	case DayItemAccommodation:
		return json.Marshal(struct {
			Type            DayItemType        `json:"type"`
			Time            string             `json:"time"`
			AccommodationID primitive.ObjectID `json:"accommodation_id"`
		}{d.Type, d.Time, d.AccommodationID})
	default:
		return nil, fmt.Errorf("day item has unknown type %q", d.Type)
	}
}

// UnmarshalJSON decodes a day item and rejects unknown discriminators.
func (d *DayItem) UnmarshalJSON(data []byte) error {
	type alias DayItem
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	switch decoded.Type {
	case DayItemTransportation, DayItemActivity, DayItemAccommodation:
	default:
		return fmt.Errorf("day item has unknown type %q", decoded.Type)
	}
	*d = DayItem(decoded)
	return nil
}

// Days maps day keys ("day1", "day2", ...) to the ordered items scheduled on
// that day.
type Days map[string][]DayItem

// DayKey formats the canonical key for a 1-based day number.
func DayKey(n int) string { return fmt.Sprintf("day%d", n) }

// SortedKeys returns the day keys in day-number order. Keys that do not
// follow the "day<N>" convention sort after the numbered ones.
func (d Days) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, iOK := dayNumber(keys[i])
		nj, jOK := dayNumber(keys[j])
		if iOK != jOK {
			return iOK
		}
		if iOK && ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func dayNumber(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "day")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ActivityIDs returns the distinct activity references across all days.
func (d Days) ActivityIDs() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, items := range d {
		for _, item := range items {
			if item.Type != DayItemActivity {
				continue
			}
			if _, ok := seen[item.ActivityID]; ok {
				continue
			}
			seen[item.ActivityID] = struct{}{}
			ids = append(ids, item.ActivityID)
		}
	}
	return ids
}

// AccommodationIDs returns the distinct lodging references across all days.
func (d Days) AccommodationIDs() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, items := range d {
		for _, item := range items {
			if item.Type != DayItemAccommodation {
				continue
			}
			if _, ok := seen[item.AccommodationID]; ok {
				continue
			}
			seen[item.AccommodationID] = struct{}{}
			ids = append(ids, item.AccommodationID)
		}
	}
	return ids
}

// CountActivities returns the total number of activity items across all days.
func (d Days) CountActivities() int {
	total := 0
	for _, items := range d {
		for _, item := range items {
			if item.Type == DayItemActivity {
				total++
			}
		}
	}
	return total
}

// HasAccommodation reports whether any day contains an accommodation item.
func (d Days) HasAccommodation() bool {
	for _, items := range d {
		for _, item := range items {
			if item.Type == DayItemAccommodation {
				return true
			}
		}
	}
	return false
}

// HasTransportation reports whether any day contains a transportation item.
func (d Days) HasTransportation() bool {
	return len(d.TransportationNames()) > 0
}

// TransportationNames returns the names of every transportation item.
func (d Days) TransportationNames() []string {
	var names []string
	for _, items := range d {
		for _, item := range items {
			if item.Type == DayItemTransportation {
				names = append(names, item.Name)
			}
		}
	}
	return names
}

// FeaturedVacation is a catalog itinerary, either curated or generated. Match
// fields are computed per request and never persisted.
type FeaturedVacation struct {
	ID                *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	FareharborID      *int                `json:"fareharbor_id,omitempty" bson:"fareharbor_id,omitempty"`
	TripName          string              `json:"trip_name" bson:"trip_name"`
	MinAge            *int                `json:"min_age,omitempty" bson:"min_age,omitempty"`
	MinGroup          int                 `json:"min_group" bson:"min_group"`
	MaxGroup          int                 `json:"max_group" bson:"max_group"`
	LengthDays        int                 `json:"length_days" bson:"length_days"`
	LengthHours       int                 `json:"length_hours" bson:"length_hours"`
	StartLocation     Location            `json:"start_location" bson:"start_location"`
	EndLocation       Location            `json:"end_location" bson:"end_location"`
	Description       string              `json:"description" bson:"description"`
	Days              Days                `json:"days" bson:"days"`
	Images            []string            `json:"images,omitempty" bson:"images,omitempty"`
	ArrivalDatetime   *time.Time          `json:"arrival_datetime,omitempty" bson:"arrival_datetime,omitempty"`
	DepartureDatetime *time.Time          `json:"departure_datetime,omitempty" bson:"departure_datetime,omitempty"`
	Adults            *int                `json:"adults,omitempty" bson:"adults,omitempty"`
	Children          *int                `json:"children,omitempty" bson:"children,omitempty"`
	Infants           *int                `json:"infants,omitempty" bson:"infants,omitempty"`
	Pets              *int                `json:"pets,omitempty" bson:"pets,omitempty"`
	Lodging           []string            `json:"lodging,omitempty" bson:"lodging,omitempty"`
	Transportation    *string             `json:"transportation,omitempty" bson:"transportation,omitempty"`
	PersonCost        *float64            `json:"person_cost,omitempty" bson:"person_cost,omitempty"`
	// Activities is the flattened label summary persisted alongside the
	// days, which is what the cascade's label filters match against.
	Activities []ActivitySummary `json:"activities,omitempty" bson:"activities,omitempty"`
	CreatedAt  *time.Time        `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt  *time.Time        `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	Tag        *string           `json:"tag,omitempty" bson:"tag,omitempty"`

	MatchScore     *uint8          `json:"match_score,omitempty" bson:"-"`
	ScoreBreakdown *ScoreBreakdown `json:"score_breakdown,omitempty" bson:"-"`
}

// NumDays returns how many day entries the itinerary actually has.
func (f *FeaturedVacation) NumDays() int { return len(f.Days) }
