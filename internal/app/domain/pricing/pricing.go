// Package pricing computes per-person cost breakdowns for itineraries.
// All amounts are per person; group totals are the caller's concern.
package pricing

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cairntrips/cairn/internal/app/models"
)

const (
	serviceFeeRate    = 0.05
	minimumServiceFee = 50.0
)

// Breakdown itemizes the per-person cost of an itinerary. The service fee
// is charged on top of the subtotal.
type Breakdown struct {
	ActivitiesTotal float64 `json:"activities_total"`
	LodgingTotal    float64 `json:"lodging_total"`
	Subtotal        float64 `json:"subtotal"`
	ServiceFee      float64 `json:"service_fee"`
	Total           float64 `json:"total"`
}

// ServiceFee is 5% of the subtotal, with a $50.00 floor.
func ServiceFee(subtotal float64) float64 {
	return max(subtotal*serviceFeeRate, minimumServiceFee)
}

// ActivityCost sums price_per_person over every resolved activity item.
func ActivityCost(itinerary *models.PopulatedItinerary) float64 {
	total := 0.0
	for _, items := range itinerary.PopulatedDays {
		for i := range items {
			item := &items[i]
			if item.Type == models.DayItemActivity && item.Activity != nil {
				total += float64(item.Activity.PricePerPerson)
			}
		}
	}
	return total
}

// LodgingCost sums price_per_night over every resolved accommodation item.
// Accommodations without a listed price contribute nothing.
func LodgingCost(itinerary *models.PopulatedItinerary) float64 {
	total := 0.0
	for _, items := range itinerary.PopulatedDays {
		for i := range items {
			item := &items[i]
			if item.Type == models.DayItemAccommodation && item.Accommodation != nil &&
				item.Accommodation.PricePerNight != nil {
				total += *item.Accommodation.PricePerNight
			}
		}
	}
	return total
}

// TransportCost is zero for now; transportation items carry no cost field.
func TransportCost(_ *models.PopulatedItinerary) float64 {
	return 0
}

// PersonCost is the per-person subtotal before the service fee.
func PersonCost(itinerary *models.PopulatedItinerary) float64 {
	return ActivityCost(itinerary) + LodgingCost(itinerary) + TransportCost(itinerary)
}

// Compute builds the full cost breakdown for one populated itinerary.
func Compute(itinerary *models.PopulatedItinerary) Breakdown {
	activities := ActivityCost(itinerary)
	lodging := LodgingCost(itinerary)
	subtotal := activities + lodging + TransportCost(itinerary)
	fee := ServiceFee(subtotal)
	return Breakdown{
		ActivitiesTotal: activities,
		LodgingTotal:    lodging,
		Subtotal:        subtotal,
		ServiceFee:      fee,
		Total:           subtotal + fee,
	}
}

// ScheduledActivityCost prices a day plan that has not been populated yet,
// looking scheduled activity references up in the given catalog slice.
// Unknown references contribute nothing.
func ScheduledActivityCost(days models.Days, activities []models.Activity) float64 {
	prices := make(map[primitive.ObjectID]float64, len(activities))
	for i := range activities {
		if activities[i].ID != nil {
			prices[*activities[i].ID] = float64(activities[i].PricePerPerson)
		}
	}

	total := 0.0
	for _, items := range days {
		for _, item := range items {
			if item.Type == models.DayItemActivity {
				total += prices[item.ActivityID]
			}
		}
	}
	return total
}
