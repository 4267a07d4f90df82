// Package classify turns a per-sample prediction trace into a diagnosis label.
package classify

import (
	"errors"
	"fmt"
)

// Label is the diagnosis derived from a prediction trace.
type Label string

// Labels reported to clients.
const (
	LabelNormal Label = "Normal"
	LabelMDD    Label = "MDD"
)

// DefaultThreshold is the mean score at or above which a trace is labelled MDD.
const DefaultThreshold = 0.5

// ErrEmptyTrace is returned when there is nothing to classify.
var ErrEmptyTrace = errors.New("classify: empty prediction trace")

// Report conclusions.
const (
	conclusionNormal = "No signs of mental disorder"
	conclusionMDD    = "Signs of MDD detected"
)

// Classifier labels traces by comparing their mean score to a threshold.
type Classifier struct {
	threshold float64
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithThreshold sets the decision threshold. Values outside [0, 1] are ignored.
func WithThreshold(t float64) Option {
	return func(c *Classifier) {
		if t >= 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// New creates a classifier with configuration options.
func New(opts ...Option) *Classifier {
	c := &Classifier{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured decision threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify returns the label for trace along with its mean score.
func (c *Classifier) Classify(trace []float64) (Label, float64, error) {
	if len(trace) == 0 {
		return "", 0, ErrEmptyTrace
	}
	var sum float64
	for _, v := range trace {
		sum += v
	}
	mean := sum / float64(len(trace))
	if mean >= c.threshold {
		return LabelMDD, mean, nil
	}
	return LabelNormal, mean, nil
}

// Conclusion returns the report sentence for a label. Anything other than
// Normal reads as a positive finding.
func Conclusion(label Label) string {
	if label == LabelNormal {
		return conclusionNormal
	}
	return conclusionMDD
}

// ParseLabel accepts the two known labels.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelNormal, LabelMDD:
		return Label(s), nil
	}
	return "", fmt.Errorf("classify: unknown label %q", s)
}
