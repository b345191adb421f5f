package trend

import "errors"

var (
	// ErrMixedPatients is returned when a history mixes patients.
	ErrMixedPatients = errors.New("history contains more than one patient")
	// ErrUnknownMetric is returned when a metric name is not tracked.
	ErrUnknownMetric = errors.New("unknown trend metric")
)
