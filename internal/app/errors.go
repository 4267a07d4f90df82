package service

import "errors"

var (
	// ErrNotStarted is returned by pipeline operations before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrNotConfigured is returned by Start when a required dependency is missing.
	ErrNotConfigured = errors.New("service not configured")
	// ErrInvalidRecording wraps every failure caused by the uploaded data.
	ErrInvalidRecording = errors.New("invalid recording")
	// ErrUploadTooLarge is returned when an upload exceeds the size limit.
	ErrUploadTooLarge = errors.New("upload too large")
	// ErrNoResults is returned when no inference has been stored yet.
	ErrNoResults = errors.New("no saved results")
	// ErrResultNotFound is returned for an unknown result ID.
	ErrResultNotFound = errors.New("result not found")
)
