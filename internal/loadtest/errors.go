package loadtest

import "errors"

var (
	// ErrConfig is returned for invalid run parameters.
	ErrConfig = errors.New("invalid load test config")
	// ErrUnhealthy is returned when the service does not answer before the run.
	ErrUnhealthy = errors.New("service unhealthy")
)
