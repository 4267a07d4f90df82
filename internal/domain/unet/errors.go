package unet

import "errors"

var (
	// ErrChannelMismatch is returned when an input's channel dimension does
	// not match the architecture.
	ErrChannelMismatch = errors.New("input channel count mismatch")
	// ErrEmptyInput is returned for an input with no samples.
	ErrEmptyInput = errors.New("input has no samples")
	// ErrMissingParam is returned when a required parameter is absent.
	ErrMissingParam = errors.New("missing parameter")
	// ErrUnexpectedParam is returned for a parameter the architecture does not use.
	ErrUnexpectedParam = errors.New("unexpected parameter")
	// ErrParamShape is returned when a parameter's shape or length is wrong.
	ErrParamShape = errors.New("parameter shape mismatch")
	// ErrArchitecture is returned for an invalid architecture.
	ErrArchitecture = errors.New("invalid architecture")
)
