package seed

import "errors"

var (
	// ErrNothingGenerated is returned when the config asks for no data.
	ErrNothingGenerated = errors.New("nothing to generate")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrVerificationFailed is returned when stored trends disagree with
	// the generated histories.
	ErrVerificationFailed = errors.New("verification failed")
)
