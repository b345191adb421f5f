package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrDuplicate      = errors.New("measurement already recorded for this patient and date")
	ErrInvalidPatient = errors.New("patient id must not be empty")
	ErrClosed         = errors.New("store closed")
)
