package client

import (
	"errors"
	"fmt"
)

// ErrBaseURL is returned by New for an empty or unparsable base URL.
var ErrBaseURL = errors.New("invalid base url")

// StatusError reports a non-2xx response. Body holds the raw response text.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}
