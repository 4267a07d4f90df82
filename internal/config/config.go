// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Zero-variance policies accepted by ZeroVariancePolicy.
const (
	ZeroVarianceReject  = "reject"
	ZeroVarianceEpsilon = "epsilon"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// WeightsPath points at the safetensors file holding the model parameters.
	WeightsPath string `koanf:"weights_path"`

	// AllowRandomWeights lets the process start without WeightsPath using
	// deterministic random parameters. Demo use only.
	AllowRandomWeights bool `koanf:"allow_random_weights"`

	// RandomWeightsSeed seeds the random parameters when AllowRandomWeights is set.
	RandomWeightsSeed int64 `koanf:"random_weights_seed"`

	// DataKey is the variable name holding the (129, T) array in uploaded MAT files.
	DataKey string `koanf:"data_key"`

	// TrialLength is the number of samples per trial.
	TrialLength int `koanf:"trial_length"`

	// ChannelIndex selects the channel whose trial average is persisted.
	ChannelIndex int `koanf:"channel_index"`

	// ArtifactDir receives channel_<i>_average.mat files.
	ArtifactDir string `koanf:"artifact_dir"`

	// CompressArtifacts writes channel averages as compressed MAT elements.
	CompressArtifacts bool `koanf:"compress_artifacts"`

	// ArtifactLockTimeoutSec bounds the wait for the artifact directory lock.
	ArtifactLockTimeoutSec int `koanf:"artifact_lock_timeout_sec"`

	// ZeroVariancePolicy is "reject" or "epsilon".
	ZeroVariancePolicy string `koanf:"zero_variance_policy"`

	// Epsilon replaces a zero standard deviation under the epsilon policy.
	Epsilon float64 `koanf:"epsilon"`

	// DBPath is the SQLite result store location.
	DBPath string `koanf:"db_path"`

	// DBBusyTimeoutMS is how long SQLite waits on a locked database.
	DBBusyTimeoutMS int `koanf:"db_busy_timeout_ms"`

	// MaxUploadMB caps the multipart upload size.
	MaxUploadMB int `koanf:"max_upload_mb"`

	// MaxRecordingMB caps the decompressed size of an uploaded MAT file.
	MaxRecordingMB int `koanf:"max_recording_mb"`

	// InferenceConcurrency bounds trial fan-out for whole-recording inference.
	InferenceConcurrency int `koanf:"inference_concurrency"`

	// ClassifyThreshold is the mean score at or above which a trace is labelled MDD.
	ClassifyThreshold float64 `koanf:"classify_threshold"`

	// RequestTimeoutSec bounds HTTP read/write time for a single request.
	RequestTimeoutSec int `koanf:"request_timeout_sec"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8000",
		WeightsPath:            "unet_eeg_weights.safetensors",
		AllowRandomWeights:     false,
		RandomWeightsSeed:      42,
		DataKey:                "ceeg",
		TrialLength:            374,
		ChannelIndex:           2,
		ArtifactDir:            "channel_averages",
		ArtifactLockTimeoutSec: 10,
		ZeroVariancePolicy:     ZeroVarianceReject,
		Epsilon:                1e-8,
		DBPath:                 "nsted.db",
		DBBusyTimeoutMS:        5000,
		MaxUploadMB:            64,
		MaxRecordingMB:         256,
		InferenceConcurrency:   runtime.NumCPU(),
		ClassifyThreshold:      0.5,
		RequestTimeoutSec:      120,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DataKey) == "":
		return fmt.Errorf("%w: data_key must not be empty", ErrInvalidConfig)
	case c.TrialLength <= 0:
		return fmt.Errorf("%w: trial_length must be positive, got %d", ErrInvalidConfig, c.TrialLength)
	case c.ChannelIndex < 0:
		return fmt.Errorf("%w: channel_index must not be negative, got %d", ErrInvalidConfig, c.ChannelIndex)
	case c.WeightsPath == "" && !c.AllowRandomWeights:
		return fmt.Errorf("%w: weights_path is required unless allow_random_weights is set", ErrInvalidConfig)
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("%w: max_upload_mb must be positive, got %d", ErrInvalidConfig, c.MaxUploadMB)
	case c.MaxRecordingMB <= 0:
		return fmt.Errorf("%w: max_recording_mb must be positive, got %d", ErrInvalidConfig, c.MaxRecordingMB)
	case c.ClassifyThreshold < 0 || c.ClassifyThreshold > 1:
		return fmt.Errorf("%w: classify_threshold must be within [0,1], got %g", ErrInvalidConfig, c.ClassifyThreshold)
	}

	switch c.ZeroVariancePolicy {
	case ZeroVarianceReject:
	case ZeroVarianceEpsilon:
		if c.Epsilon <= 0 {
			return fmt.Errorf("%w: epsilon must be positive under the epsilon policy", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown zero_variance_policy %q", ErrInvalidConfig, c.ZeroVariancePolicy)
	}
	return nil
}

// MaxUploadBytes returns MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MaxRecordingBytes returns MaxRecordingMB in bytes.
func (c *Config) MaxRecordingBytes() int64 {
	return int64(c.MaxRecordingMB) << 20
}
