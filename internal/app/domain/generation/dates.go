package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/cairntrips/cairn/internal/app/models"
)

// dateLayouts are tried in order against traveler-supplied date strings.
// Layouts without a year default to the current year.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"Jan 2T15:04:05",
	"Jan 2",
}

// ParseFlexibleDate parses any of the date formats the search form has been
// observed to send.
func ParseFlexibleDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, models.ErrMissingDates
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		if parsed.Year() == 0 {
			now := time.Now().UTC()
			parsed = time.Date(now.Year(), parsed.Month(), parsed.Day(),
				parsed.Hour(), parsed.Minute(), parsed.Second(), 0, time.UTC)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q: %w", value, models.ErrUnparseableDate)
}

// TripDates parses the query's arrival and departure timestamps.
func TripDates(query *models.SearchQuery) (arrival, departure time.Time, err error) {
	if !query.HasDates() {
		return time.Time{}, time.Time{}, models.ErrMissingDates
	}

	arrival, err = ParseFlexibleDate(*query.ArrivalDatetime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("arrival date: %w", err)
	}
	departure, err = ParseFlexibleDate(*query.DepartureDatetime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("departure date: %w", err)
	}
	return arrival, departure, nil
}

// TripLengthDays is the whole-day difference between arrival and departure.
// Same-day and inverted ranges count as a one-day trip.
func TripLengthDays(arrival, departure time.Time) int {
	days := int(departure.Sub(arrival).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}
