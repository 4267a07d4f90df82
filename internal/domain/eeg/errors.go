package eeg

import "errors"

// Sentinel kinds for recording validation and preprocessing errors.
var (
	ErrChannelCount    = errors.New("unexpected channel count")
	ErrShape           = errors.New("data length does not match shape")
	ErrTrialLength     = errors.New("trial length must be positive")
	ErrNoTrials        = errors.New("recording shorter than one trial")
	ErrZeroVariance    = errors.New("zero-variance channel")
	ErrNonFinite       = errors.New("non-finite sample")
	ErrChannelIndex    = errors.New("channel index out of range")
	ErrStandardization = errors.New("standardization does not match tensor")
)
