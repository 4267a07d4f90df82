// Package inference runs the loaded U-Net over preprocessed trials.
package inference

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/internal/domain/unet"
	"github.com/okian/nsted/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Runner scores trials with a fixed model. It is immutable after
// construction and safe for concurrent use.
type Runner struct {
	model       *unet.Model
	concurrency int
}

// NewRunner creates a runner around a loaded model.
func NewRunner(model *unet.Model, opts ...Option) (*Runner, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	r := &Runner{
		model:       model,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Architecture reports the dimensions of the underlying model.
func (r *Runner) Architecture() unet.Architecture { return r.model.Architecture() }

// Concurrency reports the RunAll fan-out limit.
func (r *Runner) Concurrency() int { return r.concurrency }

// Run scores one [channels, L] trial and returns L probabilities.
func (r *Runner) Run(ctx context.Context, trial eeg.Trial) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(trial.Data) != trial.Channels*trial.Length {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrTrialShape, trial.Channels, trial.Length, len(trial.Data))
	}

	in := make([]float32, len(trial.Data))
	for i, v := range trial.Data {
		f := float32(v)
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("%w: channel %d sample %d", ErrNonFinite, i/trial.Length, i%trial.Length)
		}
		in[i] = f
	}
	x, err := unet.NewTensor(trial.Channels, trial.Length, in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrialShape, err)
	}

	start := time.Now()
	out, err := r.model.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	metrics.RecordInferenceLatency(float64(time.Since(start).Microseconds()) / 1000)

	scores := make([]float64, len(out))
	for i, v := range out {
		scores[i] = float64(v)
	}
	return scores, nil
}

// RunAll scores every trial of seg, at most Concurrency at a time. Results
// are indexed by trial. The first failure cancels the remaining trials.
func (r *Runner) RunAll(ctx context.Context, seg *eeg.Segmented) ([][]float64, error) {
	results := make([][]float64, seg.Trials)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < seg.Trials; i++ {
		trial := seg.Trial(i)
		g.Go(func() error {
			scores, err := r.Run(gctx, trial)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			results[i] = scores
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
