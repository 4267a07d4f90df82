package eeg

import (
	"fmt"
	"math"
)

// Preprocessor standardizes recordings channel-wise and cuts them into
// non-overlapping fixed-length trials. It holds no per-call state.
type Preprocessor struct {
	trialLength int
	policy      ZeroVariancePolicy
	epsilon     float64
}

// NewPreprocessor creates a preprocessor with configuration options.
func NewPreprocessor(opts ...Option) *Preprocessor {
	p := &Preprocessor{
		trialLength: DefaultTrialLength,
		policy:      ZeroVarianceReject,
		epsilon:     DefaultEpsilon,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// TrialLength returns the configured samples per trial.
func (p *Preprocessor) TrialLength() int { return p.trialLength }

// Policy returns the configured zero-variance policy.
func (p *Preprocessor) Policy() ZeroVariancePolicy { return p.policy }

// TrialCount returns floor(samples/trialLength).
func (p *Preprocessor) TrialCount(samples int) int {
	if p.trialLength <= 0 {
		return 0
	}
	return samples / p.trialLength
}

// Preprocess computes the channel-wise mean and population standard deviation
// over the whole recording, standardizes every sample and reshapes the result
// into (trials, channels, trialLength). Trailing samples that do not fill a
// whole trial are dropped. The recording is not modified.
func (p *Preprocessor) Preprocess(rec *Recording) (*Segmented, Standardization, error) {
	if rec.Channels != ExpectedChannels {
		return nil, Standardization{}, fmt.Errorf("%w: expected %d channels, got %d", ErrChannelCount, ExpectedChannels, rec.Channels)
	}
	if p.trialLength <= 0 {
		return nil, Standardization{}, fmt.Errorf("%w: %d", ErrTrialLength, p.trialLength)
	}
	trials := p.TrialCount(rec.Samples)
	if trials == 0 {
		return nil, Standardization{}, fmt.Errorf("%w: %d samples, trial length %d", ErrNoTrials, rec.Samples, p.trialLength)
	}

	st, err := p.standardization(rec)
	if err != nil {
		return nil, Standardization{}, err
	}

	L := p.trialLength
	seg := &Segmented{
		Trials:      trials,
		Channels:    rec.Channels,
		TrialLength: L,
		Data:        make([]float64, trials*rec.Channels*L),
	}
	for c := 0; c < rec.Channels; c++ {
		src := rec.Channel(c)
		mean, std := st.Mean[c], st.Std[c]
		for tr := 0; tr < trials; tr++ {
			dst := seg.Trial(tr).Channel(c)
			for i, x := range src[tr*L : (tr+1)*L] {
				dst[i] = (x - mean) / std
			}
		}
	}
	return seg, st, nil
}

// standardization computes per-channel mean and population std (ddof=0).
func (p *Preprocessor) standardization(rec *Recording) (Standardization, error) {
	st := Standardization{
		Mean: make([]float64, rec.Channels),
		Std:  make([]float64, rec.Channels),
	}
	n := float64(rec.Samples)
	for c := 0; c < rec.Channels; c++ {
		samples := rec.Channel(c)

		var sum float64
		lo, hi := math.Inf(1), math.Inf(-1)
		for t, x := range samples {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return Standardization{}, fmt.Errorf("%w: channel %d sample %d", ErrNonFinite, c, t)
			}
			sum += x
			lo, hi = min(lo, x), max(hi, x)
		}

		// A flat channel's computed std is rounding noise unless the value
		// happens to be exact in binary, so it is detected on the samples.
		if lo == hi {
			if p.policy != ZeroVarianceEpsilon {
				return Standardization{}, fmt.Errorf("%w: channel %d", ErrZeroVariance, c)
			}
			st.Mean[c] = lo
			st.Std[c] = p.epsilon
			continue
		}

		mean := sum / n
		var sq float64
		for _, x := range samples {
			d := x - mean
			sq += d * d
		}
		st.Mean[c] = mean
		st.Std[c] = math.Sqrt(sq / n)
	}
	return st, nil
}

// Destandardize reverses standardization, returning x*std+mean for every
// sample in a new tensor.
func Destandardize(seg *Segmented, st Standardization) (*Segmented, error) {
	if err := checkStandardization(seg, st); err != nil {
		return nil, err
	}
	out := &Segmented{
		Trials:      seg.Trials,
		Channels:    seg.Channels,
		TrialLength: seg.TrialLength,
		Data:        make([]float64, len(seg.Data)),
	}
	for tr := 0; tr < seg.Trials; tr++ {
		in, dst := seg.Trial(tr), out.Trial(tr)
		for c := 0; c < seg.Channels; c++ {
			mean, std := st.Mean[c], st.Std[c]
			d := dst.Channel(c)
			for i, x := range in.Channel(c) {
				d[i] = x*std + mean
			}
		}
	}
	return out, nil
}

func checkStandardization(seg *Segmented, st Standardization) error {
	if len(st.Mean) != seg.Channels || len(st.Std) != seg.Channels {
		return fmt.Errorf("%w: %d channels, %d means, %d stds", ErrStandardization, seg.Channels, len(st.Mean), len(st.Std))
	}
	return nil
}
