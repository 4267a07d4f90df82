// Package service wires preprocessing, inference, classification and
// persistence into the operations exposed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/nsted/internal/adapters/artifacts"
	"github.com/okian/nsted/internal/adapters/repository"
	"github.com/okian/nsted/internal/domain/classify"
	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/internal/domain/inference"
	"github.com/okian/nsted/internal/domain/model"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/pkg/logger"
	"github.com/okian/nsted/pkg/metrics"
)

// Defaults applied by New.
const (
	DefaultDataKey        = "ceeg"
	DefaultArtifactDir    = "channel_averages"
	DefaultMaxUploadBytes = 64 << 20
	// DefaultMaxRecordingBytes bounds how far a compressed upload may expand.
	DefaultMaxRecordingBytes = 256 << 20
)

// Service implements the API dependencies for the inference pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	runner       *inference.Runner
	preprocessor *eeg.Preprocessor
	classifier   *classify.Classifier
	artifacts    *artifacts.Writer
	store        repository.Store

	// Configuration
	dataKey        string
	averageChannel int
	maxUploadBytes int64
	maxRecording   int64

	// State
	started bool

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		preprocessor:   eeg.NewPreprocessor(),
		classifier:     classify.New(),
		artifacts:      artifacts.NewWriter(DefaultArtifactDir),
		dataKey:        DefaultDataKey,
		averageChannel: eeg.DefaultAverageChannel,
		maxUploadBytes: DefaultMaxUploadBytes,
		maxRecording:   DefaultMaxRecordingBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start checks the wiring and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.runner == nil {
		return fmt.Errorf("%w: runner is required", ErrNotConfigured)
	}
	if s.store == nil {
		return fmt.Errorf("%w: store is required", ErrNotConfigured)
	}
	if err := checkInputChannels(s.runner.Architecture()); err != nil {
		return err
	}
	if s.averageChannel >= s.runner.Architecture().InChannels {
		return fmt.Errorf("%w: average channel %d exceeds %d input channels",
			ErrNotConfigured, s.averageChannel, s.runner.Architecture().InChannels)
	}

	metrics.UpdateModelParameters(s.runner.Architecture().ParameterCount())

	s.started = true
	s.logger.Info(ctx, "inference service started",
		logger.String("dataKey", s.dataKey),
		logger.Int("trialLength", s.preprocessor.TrialLength()),
		logger.String("zeroVariancePolicy", s.preprocessor.Policy().String()),
		logger.Int("averageChannel", s.averageChannel),
		logger.String("artifactDir", s.artifacts.Dir()),
		logger.Int("concurrency", s.runner.Concurrency()),
	)
	return nil
}

// checkInputChannels refuses a model that cannot accept preprocessed trials.
func checkInputChannels(arch unet.Architecture) error {
	if arch.InChannels != eeg.ExpectedChannels {
		return fmt.Errorf("%w: model expects %d input channels, recordings have %d",
			ErrNotConfigured, arch.InChannels, eeg.ExpectedChannels)
	}
	return nil
}

// Stop releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close result store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "inference service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// PredictedClass returns the label of the most recent stored result.
func (s *Service) PredictedClass(ctx context.Context) (string, error) {
	if !s.isStarted() {
		return "", ErrNotStarted
	}
	r, err := s.store.Latest(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrNoResults
	}
	if err != nil {
		return "", err
	}
	return r.PredictedClass, nil
}

// Result returns a stored result by ID.
func (s *Service) Result(ctx context.Context, id string) (*model.Result, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
	}
	return r, err
}

// Results returns up to n result summaries, newest first.
func (s *Service) Results(ctx context.Context, n int) ([]model.Summary, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":            s.started,
		"dataKey":            s.dataKey,
		"trialLength":        s.preprocessor.TrialLength(),
		"zeroVariancePolicy": s.preprocessor.Policy().String(),
		"averageChannel":     s.averageChannel,
		"classifyThreshold":  s.classifier.Threshold(),
		"maxUploadBytes":     s.maxUploadBytes,
	}

	if s.runner != nil {
		arch := s.runner.Architecture()
		stats["inChannels"] = arch.InChannels
		stats["baseWidth"] = arch.BaseWidth
		stats["modelParameters"] = arch.ParameterCount()
		stats["concurrency"] = s.runner.Concurrency()
	}

	if s.started {
		if n, err := s.store.Count(context.Background()); err == nil {
			stats["totalResults"] = n
			metrics.UpdateResultsTotal(n)
		}
	}

	return stats
}
