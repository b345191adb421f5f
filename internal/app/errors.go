package service

import "errors"

var (
	// ErrMissingPatient is returned when a measurement carries no patient id.
	ErrMissingPatient = errors.New("patient id is required")
	// ErrNotFound is returned when a patient has no stored measurements.
	ErrNotFound = errors.New("no measurements for patient")
	// ErrBackpressure is returned when the import queue is full.
	ErrBackpressure = errors.New("import queue is full")
	// ErrNotStarted is returned by import operations before Start.
	ErrNotStarted = errors.New("service not started")
)
