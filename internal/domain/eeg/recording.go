// Package eeg holds the recording model and the preprocessing steps that turn
// a raw multichannel recording into standardized fixed-length trials.
package eeg

import "fmt"

// ExpectedChannels is the channel count of every recording the model accepts.
const ExpectedChannels = 129

// Recording is a raw multichannel time series. Data is channel-major:
// sample t of channel c lives at Data[c*Samples+t].
type Recording struct {
	Channels int
	Samples  int
	Data     []float64
}

// NewRecording validates the shape and wraps data without copying.
func NewRecording(channels, samples int, data []float64) (*Recording, error) {
	if channels <= 0 || samples < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrShape, channels, samples)
	}
	if len(data) != channels*samples {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrShape, channels, samples, channels*samples, len(data))
	}
	return &Recording{Channels: channels, Samples: samples, Data: data}, nil
}

// Channel returns the samples of channel c. The slice aliases the recording.
func (r *Recording) Channel(c int) []float64 {
	return r.Data[c*r.Samples : (c+1)*r.Samples]
}

// Standardization holds the per-channel parameters used to standardize a
// recording. Both slices have one entry per channel and are never mutated
// after Preprocess returns them.
type Standardization struct {
	Mean []float64
	Std  []float64
}

// Segmented is a (Trials, Channels, TrialLength) tensor in trial-major order.
type Segmented struct {
	Trials      int
	Channels    int
	TrialLength int
	Data        []float64
}

// Trial is one [Channels, Length] slice of a Segmented tensor.
type Trial struct {
	Channels int
	Length   int
	Data     []float64
}

// Trial returns trial i as a view into s.
func (s *Segmented) Trial(i int) Trial {
	stride := s.Channels * s.TrialLength
	return Trial{
		Channels: s.Channels,
		Length:   s.TrialLength,
		Data:     s.Data[i*stride : (i+1)*stride],
	}
}

// Channel returns the samples of channel c within the trial.
func (t Trial) Channel(c int) []float64 {
	return t.Data[c*t.Length : (c+1)*t.Length]
}
