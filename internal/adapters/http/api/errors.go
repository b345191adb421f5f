package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrEmptyBatch    = errors.New("empty import batch")
	ErrBatchTooLarge = errors.New("import batch too large")
)
