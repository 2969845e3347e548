package discovery

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cairntrips/cairn/internal/app/models"
)

// Defaults substituted for fields the semantic index does not carry.
const (
	defaultTitle       = "Untitled Activity"
	defaultDescription = "No description available"

	// Matches the two-hour assumption the scheduler and pace scoring use
	// when real durations are unknown.
	defaultDurationMinutes = 120

	defaultCapacityMin = 1
	defaultCapacityMax = 10
)

// ActivityFromDocument normalizes one untyped semantic-search document into
// a catalog activity. Every missing field gets an explicit default here;
// nothing downstream ever sees the raw document.
func ActivityFromDocument(externalID string, doc map[string]any) models.Activity {
	activity := models.Activity{
		ID:                  parseExternalID(externalID, doc),
		Company:             stringField(doc, "company"),
		CompanyID:           stringField(doc, "company_id"),
		BookingLink:         stringField(doc, "booking_link"),
		OnlineBookingStatus: stringField(doc, "online_booking_status"),
		Title:               stringField(doc, "title"),
		Description:         stringField(doc, "description"),
		ActivityTypes:       stringSliceField(doc, "activity_types"),
		Tags:                stringSliceField(doc, "tags"),
		PricePerPerson:      intField(doc, "price_per_person"),
		DurationMinutes:     intField(doc, "duration_minutes"),
		DailyTimeSlots:      timeSlots(doc["daily_time_slots"]),
		Address:             addressField(doc),
		WhatsIncluded:       stringSliceField(doc, "whats_included"),
		Capacity:            capacityField(doc),
	}

	if activity.Title == "" {
		activity.Title = stringField(doc, "name")
	}
	if activity.Title == "" {
		activity.Title = defaultTitle
	}
	if activity.Description == "" {
		activity.Description = defaultDescription
	}
	if activity.DurationMinutes <= 0 {
		activity.DurationMinutes = defaultDurationMinutes
	}
	return activity
}

// parseExternalID recovers the catalog ObjectID from the document or the
// engine's result ID. Documents without a parseable identity get a fresh
// one minted so day items can still reference them.
func parseExternalID(externalID string, doc map[string]any) *primitive.ObjectID {
	for _, candidate := range []string{stringField(doc, "_id"), stringField(doc, "id"), externalID} {
		if candidate == "" {
			continue
		}
		if id, err := primitive.ObjectIDFromHex(candidate); err == nil {
			return &id
		}
	}
	id := primitive.NewObjectID()
	return &id
}

// timeSlots accepts both structured {start, end} objects and the index's
// flattened "start-end" strings.
func timeSlots(raw any) []models.TimeSlot {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	slots := make([]models.TimeSlot, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if start, end, found := strings.Cut(v, "-"); found {
				slots = append(slots, models.TimeSlot{
					Start: strings.TrimSpace(start),
					End:   strings.TrimSpace(end),
				})
			}
		case map[string]any:
			slot := models.TimeSlot{Start: stringField(v, "start"), End: stringField(v, "end")}
			if slot.Start != "" || slot.End != "" {
				slots = append(slots, slot)
			}
		}
	}
	return slots
}

func addressField(doc map[string]any) models.Address {
	raw, ok := doc["address"].(map[string]any)
	if !ok {
		// Some index schemas carry the location flat on the document.
		return models.Address{
			City:  stringField(doc, "city"),
			State: stringField(doc, "state"),
		}
	}
	return models.Address{
		Street:  stringField(raw, "street"),
		City:    stringField(raw, "city"),
		State:   stringField(raw, "state"),
		Zip:     stringField(raw, "zip"),
		Country: stringField(raw, "country"),
	}
}

func capacityField(doc map[string]any) models.Capacity {
	capacity := models.Capacity{Minimum: defaultCapacityMin, Maximum: defaultCapacityMax}
	raw, ok := doc["capacity"].(map[string]any)
	if !ok {
		return capacity
	}
	if minimum := intField(raw, "minimum"); minimum > 0 {
		capacity.Minimum = minimum
	}
	if maximum := intField(raw, "maximum"); maximum > 0 {
		capacity.Maximum = maximum
	}
	return capacity
}

func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intField tolerates the numeric shapes JSON decoding produces plus numbers
// the index stored as strings.
func intField(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func stringSliceField(doc map[string]any, key string) []string {
	raw, ok := doc[key].([]any)
	if !ok {
		if single := stringField(doc, key); single != "" {
			return []string{single}
		}
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
