package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingFile   = errors.New("missing file field")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrEntityTooBig  = errors.New("request entity too large")
	ErrUnknownResult = errors.New("unknown result")
)

// KindError tags an underlying error with an operation and a sentinel kind.
// errors.Is matches both the kind and the wrapped cause.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// NewKind reports kind for op without a further cause.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}
