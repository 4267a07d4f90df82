package safetensors

import "errors"

var (
	// ErrHeader is returned for a missing, oversized or malformed header.
	ErrHeader = errors.New("safetensors: invalid header")
	// ErrDType is returned for a tensor dtype the codec does not convert.
	ErrDType = errors.New("safetensors: unsupported dtype")
	// ErrOffsets is returned when data offsets disagree with the shape or buffer.
	ErrOffsets = errors.New("safetensors: invalid data offsets")
)
