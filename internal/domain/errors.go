package domain

import (
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned when an operation needs a loaded snapshot and none exists.
var ErrNoSnapshot = errors.New("dashboard: no snapshot loaded")

// LoadError reports a failure constructing or loading the dashboard snapshot.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load dashboard data: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// PredictionError reports a failure inside a prediction cycle.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string { return fmt.Sprintf("prediction cycle: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *PredictionError) Unwrap() error { return e.Err }

// DeliveryError reports a failed push to a single subscriber. It never leaves the broadcaster.
type DeliveryError struct {
	SubscriberID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to subscriber %s: %v", e.SubscriberID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error { return e.Err }
