package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionActivity is the free-text activity shape captured on a search
// submission, before any catalog resolution.
type SubmissionActivity struct {
	Label       string   `json:"label" bson:"label"`
	Description string   `json:"description" bson:"description"`
	Tags        []string `json:"tags" bson:"tags"`
}

// SearchSubmission is the record logged for each search that names at least
// one location. Logging is best effort and never blocks the request.
type SearchSubmission struct {
	ID                *primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID            *primitive.ObjectID  `json:"user_id,omitempty" bson:"user_id,omitempty"`
	LocationStart     string               `json:"location_start" bson:"location_start"`
	LocationEnd       string               `json:"location_end" bson:"location_end"`
	ArrivalDatetime   time.Time            `json:"arrival_datetime" bson:"arrival_datetime"`
	DepartureDatetime time.Time            `json:"departure_datetime" bson:"departure_datetime"`
	Adults            int                  `json:"adults" bson:"adults"`
	Children          int                  `json:"children" bson:"children"`
	Infants           int                  `json:"infants" bson:"infants"`
	Pets              int                  `json:"pets" bson:"pets"`
	Activities        []SubmissionActivity `json:"activities" bson:"activities"`
	Lodging           []string             `json:"lodging" bson:"lodging"`
	Transportation    string               `json:"transportation" bson:"transportation"`
	BudgetPerPerson   *float64             `json:"budget_per_person,omitempty" bson:"budget_per_person,omitempty"`
	Interests         []string             `json:"interests,omitempty" bson:"interests,omitempty"`
	CreatedAt         *time.Time           `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt         *time.Time           `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// SubmissionFromQuery builds the minimal submission record logged for a
// search request. Dates default to now and a week out when absent.
func SubmissionFromQuery(q *SearchQuery, now time.Time) SearchSubmission {
	var start, end string
	if len(q.Locations) > 0 {
		start = q.Locations[0]
		end = q.Locations[len(q.Locations)-1]
	}

	activities := make([]SubmissionActivity, 0, len(q.Activities))
	for _, label := range q.Activities {
		activities = append(activities, SubmissionActivity{Label: label, Tags: []string{}})
	}

	adults := 1
	if q.Adults != nil {
		adults = *q.Adults
	}
	children := 0
	if q.Children != nil {
		children = *q.Children
	}
	infants := 0
	if q.Infants != nil {
		infants = *q.Infants
	}
	transportation := ""
	if q.Transportation != nil {
		transportation = *q.Transportation
	}

	return SearchSubmission{
		UserID:            q.UserID,
		LocationStart:     start,
		LocationEnd:       end,
		ArrivalDatetime:   now,
		DepartureDatetime: now.Add(7 * 24 * time.Hour),
		Adults:            adults,
		Children:          children,
		Infants:           infants,
		Pets:              0,
		Activities:        activities,
		Lodging:           append([]string{}, q.Lodging...),
		Transportation:    transportation,
		CreatedAt:         &now,
		UpdatedAt:         &now,
	}
}
