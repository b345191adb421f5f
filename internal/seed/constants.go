package seed

import "time"

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusAccepted        = 202
	StatusNoContent       = 204
	StatusNotFound        = 404
	StatusTooManyRequests = 429
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultBatchSize     = 500
	DefaultSettle        = 2 * time.Minute
	DefaultPollInterval  = 500 * time.Millisecond
	BackpressureDelay    = 250 * time.Millisecond
	MaxBackpressureTries = 20
	PercentageMultiplier = 100
)
