package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/nsted/internal/adapters/matfile"
	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/internal/domain/inference"
	"github.com/okian/nsted/internal/domain/model"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/pkg/logger"
	"github.com/okian/nsted/pkg/metrics"
)

// AllTrials marks a stored result whose predictions are the per-sample mean
// over every trial rather than a single trial.
const AllTrials = -1

// Upload is an uploaded MAT file.
type Upload struct {
	FileName string
	Body     io.Reader
}

// Outcome is the response to a single-trial inference.
type Outcome struct {
	Result *model.Result
}

// BatchOutcome is the response to an all-trials inference.
type BatchOutcome struct {
	Result *model.Result
	Trials [][]float64
}

// prepared carries a decoded and preprocessed upload through the pipeline.
type prepared struct {
	rec *eeg.Recording
	seg *eeg.Segmented
	st  eeg.Standardization
}

// RunInference decodes the upload, scores its first trial, saves the channel
// average and stores the result. Any failing stage aborts the request.
func (s *Service) RunInference(ctx context.Context, up Upload) (*Outcome, error) {
	start := time.Now()
	out, err := s.runInference(ctx, up)
	s.finish(ctx, up, start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) runInference(ctx context.Context, up Upload) (*Outcome, error) {
	p, err := s.prepare(ctx, up)
	if err != nil {
		return nil, err
	}

	scores, err := s.runner.Run(ctx, p.seg.Trial(0))
	if err != nil {
		return nil, s.inferenceError(err)
	}

	r, err := s.complete(ctx, up, p, scores, 0)
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: r}, nil
}

// RunAllTrials scores every trial. The stored result carries the mean trace
// and is classified on it.
func (s *Service) RunAllTrials(ctx context.Context, up Upload) (*BatchOutcome, error) {
	start := time.Now()
	out, err := s.runAllTrials(ctx, up)
	s.finish(ctx, up, start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) runAllTrials(ctx context.Context, up Upload) (*BatchOutcome, error) {
	p, err := s.prepare(ctx, up)
	if err != nil {
		return nil, err
	}

	trials, err := s.runner.RunAll(ctx, p.seg)
	if err != nil {
		return nil, s.inferenceError(err)
	}

	mean := make([]float64, p.seg.TrialLength)
	for _, tr := range trials {
		for i, v := range tr {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(trials))
	}

	r, err := s.complete(ctx, up, p, mean, AllTrials)
	if err != nil {
		return nil, err
	}
	return &BatchOutcome{Result: r, Trials: trials}, nil
}

// prepare decodes and preprocesses an upload.
func (s *Service) prepare(ctx context.Context, up Upload) (*prepared, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}

	rec, err := s.decode(up)
	if err != nil {
		return nil, err
	}
	metrics.RecordRecordingSamples(rec.Samples)

	pstart := time.Now()
	seg, st, err := s.preprocessor.Preprocess(rec)
	metrics.RecordPreprocessLatency(float64(time.Since(pstart).Microseconds()) / 1000)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecording, err)
	}
	metrics.RecordTrialsSegmented(seg.Trials)

	s.logger.Debug(ctx, "recording preprocessed",
		logger.String("file", up.FileName),
		logger.Int("channels", rec.Channels),
		logger.Int("samples", rec.Samples),
		logger.Int("trials", seg.Trials),
	)
	return &prepared{rec: rec, seg: seg, st: st}, nil
}

// decode reads the upload under the size cap and extracts the recording.
func (s *Service) decode(up Upload) (*eeg.Recording, error) {
	if up.Body == nil {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidRecording)
	}
	b, err := io.ReadAll(io.LimitReader(up.Body, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(b)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, s.maxUploadBytes)
	}

	return DecodeRecording(b, s.dataKey, matfile.WithMaxInflate(s.maxRecording))
}

// DecodeRecording extracts the (channels, samples) array stored under key in
// a MAT file. A file that decompresses past its inflate limit wraps
// ErrUploadTooLarge; every other failure wraps ErrInvalidRecording.
func DecodeRecording(b []byte, key string, opts ...matfile.ReadOption) (*eeg.Recording, error) {
	f, err := matfile.Decode(b, opts...)
	if errors.Is(err, matfile.ErrTooLarge) {
		return nil, fmt.Errorf("%w: %w", ErrUploadTooLarge, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecording, err)
	}
	v, err := f.Variable(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecording, err)
	}
	rows, cols, data, err := v.Matrix()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecording, err)
	}
	rec, err := eeg.NewRecording(rows, cols, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecording, err)
	}
	return rec, nil
}

// complete classifies, saves the channel average and stores the result.
func (s *Service) complete(ctx context.Context, up Upload, p *prepared, scores []float64, trialIndex int) (*model.Result, error) {
	label, mean, err := s.classifier.Classify(scores)
	if err != nil {
		return nil, err
	}

	avg, err := eeg.ChannelAverage(p.seg, p.st, s.averageChannel)
	if err != nil {
		return nil, fmt.Errorf("channel average: %w", err)
	}
	path, err := s.artifacts.SaveChannelAverage(ctx, s.averageChannel, avg)
	if err != nil {
		return nil, fmt.Errorf("save channel average: %w", err)
	}

	r := &model.Result{
		FileName:       up.FileName,
		Channels:       p.rec.Channels,
		Samples:        p.rec.Samples,
		NumTrials:      p.seg.Trials,
		TrialLength:    p.seg.TrialLength,
		TrialIndex:     trialIndex,
		PredictedClass: string(label),
		MeanScore:      mean,
		Predictions:    scores,
		AverageChannel: s.averageChannel,
		AveragePath:    path,
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	metrics.RecordPrediction(r.PredictedClass)
	return r, nil
}

// inferenceError marks a model shape rejection as a recording problem.
func (s *Service) inferenceError(err error) error {
	if errors.Is(err, unet.ErrChannelMismatch) || errors.Is(err, inference.ErrNonFinite) {
		return fmt.Errorf("%w: %w", ErrInvalidRecording, err)
	}
	return fmt.Errorf("inference: %w", err)
}

// finish records the outcome of a pipeline run.
func (s *Service) finish(ctx context.Context, up Upload, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.RecordPipelineLatency(float64(elapsed.Microseconds()) / 1000)

	if err == nil {
		metrics.RecordUpload("success")
		s.logger.Info(ctx, "inference completed",
			logger.String("file", up.FileName),
			logger.Duration("elapsed", elapsed),
		)
		return
	}

	switch {
	case errors.Is(err, ErrInvalidRecording):
		reason := RejectReason(err)
		metrics.RecordUpload("rejected")
		metrics.RecordRejectedRecording(reason)
		s.logger.Warn(ctx, "recording rejected",
			logger.String("file", up.FileName),
			logger.String("reason", reason),
			logger.Error(err),
		)
	case errors.Is(err, ErrUploadTooLarge):
		metrics.RecordUpload("too_large")
	case errors.Is(err, ErrNotStarted):
		metrics.RecordUpload("not_started")
	default:
		metrics.RecordUpload("error")
		metrics.RecordErrorByComponent("pipeline", "internal")
		s.logger.Error(ctx, "inference failed",
			logger.String("file", up.FileName),
			logger.Error(err),
		)
	}
}

// RejectReason classifies a recording error for metrics and responses.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, eeg.ErrChannelCount), errors.Is(err, unet.ErrChannelMismatch):
		return "channel_count"
	case errors.Is(err, eeg.ErrNoTrials):
		return "no_trials"
	case errors.Is(err, eeg.ErrZeroVariance):
		return "zero_variance"
	case errors.Is(err, eeg.ErrNonFinite), errors.Is(err, inference.ErrNonFinite):
		return "non_finite"
	case errors.Is(err, matfile.ErrMissingVariable):
		return "missing_variable"
	case errors.Is(err, matfile.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, matfile.ErrUnsupportedClass), errors.Is(err, eeg.ErrShape):
		return "shape"
	case errors.Is(err, matfile.ErrInvalidHeader), errors.Is(err, matfile.ErrCorrupt):
		return "decode"
	}
	return "invalid"
}
