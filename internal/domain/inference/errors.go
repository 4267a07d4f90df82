package inference

import "errors"

var (
	// ErrNilModel is returned when a runner is built without a model.
	ErrNilModel = errors.New("inference: model is nil")
	// ErrTrialShape is returned when a trial's data does not match its dimensions.
	ErrTrialShape = errors.New("inference: trial shape mismatch")
	// ErrNonFinite is returned when a trial holds NaN or Inf, or a value
	// outside float32 range.
	ErrNonFinite = errors.New("inference: non-finite trial value")
)
