package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimeSlot is a daily availability window for an activity.
type TimeSlot struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

// Address is a street address attached to a catalog activity.
type Address struct {
	Street  string  `json:"street" bson:"street"`
	Unit    *string `json:"unit,omitempty" bson:"unit,omitempty"`
	City    string  `json:"city" bson:"city"`
	State   string  `json:"state" bson:"state"`
	Zip     string  `json:"zip" bson:"zip"`
	Country string  `json:"country" bson:"country"`
}

// FullAddress joins the populated address parts for fallback geocoding.
func (a Address) FullAddress() string {
	parts := []string{a.Street, a.City, a.State, a.Zip, a.Country}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Capacity is the allowed group size range for an activity.
type Capacity struct {
	Minimum int `json:"minimum" bson:"minimum"`
	Maximum int `json:"maximum" bson:"maximum"`
}

// Activity is a bookable catalog entry referenced by itinerary day items.
type Activity struct {
	ID                  *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Company             string              `json:"company" bson:"company"`
	CompanyID           string              `json:"company_id" bson:"company_id"`
	BookingLink         string              `json:"booking_link" bson:"booking_link"`
	OnlineBookingStatus string              `json:"online_booking_status" bson:"online_booking_status"`
	Title               string              `json:"title" bson:"title"`
	Description         string              `json:"description" bson:"description"`
	ActivityTypes       []string            `json:"activity_types" bson:"activity_types"`
	Tags                []string            `json:"tags" bson:"tags"`
	PricePerPerson      int                 `json:"price_per_person" bson:"price_per_person"`
	DurationMinutes     int                 `json:"duration_minutes" bson:"duration_minutes"`
	DailyTimeSlots      []TimeSlot          `json:"daily_time_slots" bson:"daily_time_slots"`
	Address             Address             `json:"address" bson:"address"`
	WhatsIncluded       []string            `json:"whats_included" bson:"whats_included"`
	WeightLimitLbs      *int                `json:"weight_limit_lbs,omitempty" bson:"weight_limit_lbs,omitempty"`
	AgeRequirement      *int                `json:"age_requirement,omitempty" bson:"age_requirement,omitempty"`
	HeightRequirement   *int                `json:"height_requirement,omitempty" bson:"height_requirement,omitempty"`
	BlackoutDateRanges  []string            `json:"blackout_date_ranges,omitempty" bson:"blackout_date_ranges,omitempty"`
	Capacity            Capacity            `json:"capacity" bson:"capacity"`
	PrimaryImage        *string             `json:"primary_image,omitempty" bson:"primary_image,omitempty"`
	Images              []string            `json:"images,omitempty" bson:"images,omitempty"`
}

// SearchableText concatenates the lowercased fields activity matching runs against.
func (a *Activity) SearchableText() string {
	var b strings.Builder
	for _, t := range a.ActivityTypes {
		b.WriteString(t)
		b.WriteByte(' ')
	}
	for _, t := range a.Tags {
		b.WriteString(t)
		b.WriteByte(' ')
	}
	b.WriteString(a.Title)
	b.WriteByte(' ')
	b.WriteString(a.Description)
	return strings.ToLower(b.String())
}

// Accommodation is a lodging catalog entry referenced by accommodation day items.
type Accommodation struct {
	ID            *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name          string              `json:"name" bson:"name"`
	Address       *string             `json:"address,omitempty" bson:"address,omitempty"`
	Location      *ItemLocation       `json:"location,omitempty" bson:"location,omitempty"`
	PricePerNight *float64            `json:"price_per_night,omitempty" bson:"price_per_night,omitempty"`
	Amenities     []string            `json:"amenities,omitempty" bson:"amenities,omitempty"`
	PrimaryImage  *string             `json:"primary_image,omitempty" bson:"primary_image,omitempty"`
	Images        []string            `json:"images,omitempty" bson:"images,omitempty"`
	CreatedAt     *time.Time          `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt     *time.Time          `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}
