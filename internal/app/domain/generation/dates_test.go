package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairntrips/cairn/internal/app/models"
)

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"iso datetime", "2026-07-04T10:30:00", time.Date(2026, 7, 4, 10, 30, 0, 0, time.UTC)},
		{"spaced datetime", "2026-07-04 10:30:00", time.Date(2026, 7, 4, 10, 30, 0, 0, time.UTC)},
		{"iso date", "2026-07-04", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"us date", "07/04/2026", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"long date", "Jul 4, 2026", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"surrounding whitespace", "  2026-07-04  ", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlexibleDate(tt.value)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseFlexibleDateDefaultsYear(t *testing.T) {
	got, err := ParseFlexibleDate("Jul 4")
	require.NoError(t, err)

	assert.Equal(t, time.Now().UTC().Year(), got.Year())
	assert.Equal(t, time.July, got.Month())
	assert.Equal(t, 4, got.Day())
}

func TestParseFlexibleDateErrors(t *testing.T) {
	_, err := ParseFlexibleDate("")
	assert.ErrorIs(t, err, models.ErrMissingDates)

	_, err = ParseFlexibleDate("next tuesday")
	assert.ErrorIs(t, err, models.ErrUnparseableDate)
}

func TestTripDates(t *testing.T) {
	arrival := "2026-06-01"
	departure := "2026-06-04"
	query := &models.SearchQuery{ArrivalDatetime: &arrival, DepartureDatetime: &departure}

	gotArrival, gotDeparture, err := TripDates(query)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), gotArrival)
	assert.Equal(t, time.Date(2026, 6, 4, 0, 0, 0, 0, time.UTC), gotDeparture)
}

func TestTripDatesMissing(t *testing.T) {
	arrival := "2026-06-01"
	_, _, err := TripDates(&models.SearchQuery{ArrivalDatetime: &arrival})
	assert.ErrorIs(t, err, models.ErrMissingDates)
}

func TestTripDatesUnparseable(t *testing.T) {
	arrival := "2026-06-01"
	departure := "whenever"
	query := &models.SearchQuery{ArrivalDatetime: &arrival, DepartureDatetime: &departure}

	_, _, err := TripDates(query)
	assert.ErrorIs(t, err, models.ErrUnparseableDate)
	assert.Contains(t, err.Error(), "departure")
}

func TestTripLengthDays(t *testing.T) {
	arrival := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, TripLengthDays(arrival, arrival.AddDate(0, 0, 3)))
	assert.Equal(t, 1, TripLengthDays(arrival, arrival), "same-day trips still span one day")
	assert.Equal(t, 1, TripLengthDays(arrival.AddDate(0, 0, 2), arrival), "inverted ranges clamp to one day")
	assert.Equal(t, 2, TripLengthDays(arrival, arrival.Add(60*time.Hour)), "partial days round down")
}
