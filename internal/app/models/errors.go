package models

import "errors"

// Domain specific errors shared across services and handlers.
var (
	ErrNotFound              = errors.New("requested item not found")
	ErrBadRequest            = errors.New("bad request")
	ErrValidation            = errors.New("validation failed")
	ErrNotConfigured         = errors.New("integration is not configured")
	ErrDependencyUnavailable = errors.New("required dependency is unavailable")
	ErrNoActivitiesFound     = errors.New("no activities available for the requested criteria")
	ErrMissingDates          = errors.New("arrival and departure dates are required")
	ErrUnparseableDate       = errors.New("date string does not match any supported format")
	ErrPersistenceFailed     = errors.New("failed to persist generated itinerary")
)
