package artifacts

import "errors"

var (
	// ErrLockTimeout is returned when the artifact lock cannot be acquired in time.
	ErrLockTimeout = errors.New("artifacts: lock not acquired")
	// ErrEmptyAverage is returned when there is nothing to save.
	ErrEmptyAverage = errors.New("artifacts: empty average")
)
