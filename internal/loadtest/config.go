// Package loadtest drives a running inference service with synthetic
// recordings and reports throughput, latency and outcome counts.
package loadtest

import (
	"fmt"
	"time"
)

// Defaults used by NewConfig.
const (
	DefaultUploads  = 20
	DefaultWorkers  = 4
	DefaultTimeout  = 2 * time.Minute
	DefaultChannels = 129
	DefaultSamples  = 748
	DefaultDataKey  = "ceeg"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL string        // Base URL of the service
	Uploads int           // Number of recordings to upload
	Workers int           // Number of concurrent uploaders
	Timeout time.Duration // Per-request timeout
	DataKey string        // MAT variable holding the recording
	// Channels and Samples shape every valid recording.
	Channels int
	Samples  int
	// InvalidEvery makes every n-th upload a 128-channel recording that the
	// service must reject. Zero disables it.
	InvalidEvery int
	Seed         uint64
}

// NewConfig returns a Config with defaults for baseURL.
func NewConfig(baseURL string) *Config {
	return &Config{
		BaseURL:  baseURL,
		Uploads:  DefaultUploads,
		Workers:  DefaultWorkers,
		Timeout:  DefaultTimeout,
		DataKey:  DefaultDataKey,
		Channels: DefaultChannels,
		Samples:  DefaultSamples,
		Seed:     1,
	}
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrConfig)
	case c.Uploads <= 0:
		return fmt.Errorf("%w: uploads must be positive, got %d", ErrConfig, c.Uploads)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrConfig, c.Workers)
	case c.Channels <= 1 || c.Samples <= 0:
		return fmt.Errorf("%w: recording shape %dx%d", ErrConfig, c.Channels, c.Samples)
	case c.InvalidEvery < 0:
		return fmt.Errorf("%w: invalid_every must not be negative", ErrConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Uploads   int
	Succeeded int
	// Rejected counts expected 422 responses for deliberately invalid uploads.
	Rejected int
	// Unexpected counts responses that did not match what the upload should produce.
	Unexpected int
	Failed     int
	Classes    map[string]int
	P50        time.Duration
	P95        time.Duration
	Max        time.Duration
	Duration   time.Duration
	// SavedClass is what /predict-from-saved/ returned after the run.
	SavedClass string
}

// Throughput returns uploads per second.
func (s *Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Uploads) / s.Duration.Seconds()
}
