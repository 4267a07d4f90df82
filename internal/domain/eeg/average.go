package eeg

import "fmt"

// DefaultAverageChannel is the channel averaged for reports unless configured.
const DefaultAverageChannel = 2

// ChannelAverage de-standardizes one channel of every trial and averages the
// trials sample by sample, giving a single representative waveform of
// TrialLength samples in the recording's original units.
func ChannelAverage(seg *Segmented, st Standardization, channel int) ([]float64, error) {
	if err := checkStandardization(seg, st); err != nil {
		return nil, err
	}
	if channel < 0 || channel >= seg.Channels {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrChannelIndex, channel, seg.Channels)
	}
	if seg.Trials == 0 {
		return nil, ErrNoTrials
	}

	avg := make([]float64, seg.TrialLength)
	mean, std := st.Mean[channel], st.Std[channel]
	for tr := 0; tr < seg.Trials; tr++ {
		for i, x := range seg.Trial(tr).Channel(channel) {
			avg[i] += x*std + mean
		}
	}
	n := float64(seg.Trials)
	for i := range avg {
		avg[i] /= n
	}
	return avg, nil
}
