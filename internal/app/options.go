package service

import (
	"github.com/okian/nsted/internal/adapters/artifacts"
	"github.com/okian/nsted/internal/adapters/repository"
	"github.com/okian/nsted/internal/domain/classify"
	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/internal/domain/inference"
	"github.com/okian/nsted/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRunner sets the inference runner. Required.
func WithRunner(r *inference.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithStore sets the result store. Required.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPreprocessor replaces the default preprocessor.
func WithPreprocessor(p *eeg.Preprocessor) Option {
	return func(s *Service) {
		if p != nil {
			s.preprocessor = p
		}
	}
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithArtifacts sets where channel averages are written.
func WithArtifacts(w *artifacts.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.artifacts = w
		}
	}
}

// WithDataKey sets the MAT variable holding the recording.
func WithDataKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.dataKey = key
		}
	}
}

// WithAverageChannel sets the channel whose trial average is saved.
func WithAverageChannel(channel int) Option {
	return func(s *Service) {
		if channel >= 0 {
			s.averageChannel = channel
		}
	}
}

// WithMaxUploadBytes caps the size of an uploaded file.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxRecordingBytes caps the decompressed size of an uploaded MAT file.
func WithMaxRecordingBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecording = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
