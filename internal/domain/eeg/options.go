package eeg

import (
	"fmt"
	"strings"
)

// Default preprocessing parameters.
const (
	DefaultTrialLength = 374
	DefaultEpsilon     = 1e-8
)

// ZeroVariancePolicy decides what happens to a channel whose standard
// deviation is zero.
type ZeroVariancePolicy int

const (
	// ZeroVarianceReject fails preprocessing with ErrZeroVariance.
	ZeroVarianceReject ZeroVariancePolicy = iota
	// ZeroVarianceEpsilon divides by the configured epsilon instead.
	ZeroVarianceEpsilon
)

func (p ZeroVariancePolicy) String() string {
	switch p {
	case ZeroVarianceReject:
		return "reject"
	case ZeroVarianceEpsilon:
		return "epsilon"
	default:
		return fmt.Sprintf("ZeroVariancePolicy(%d)", int(p))
	}
}

// ParseZeroVariancePolicy accepts "reject" or "epsilon".
func ParseZeroVariancePolicy(s string) (ZeroVariancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return ZeroVarianceReject, nil
	case "epsilon":
		return ZeroVarianceEpsilon, nil
	}
	return 0, fmt.Errorf("unknown zero variance policy %q", s)
}

// Option applies a configuration option to the Preprocessor.
type Option func(*Preprocessor)

// WithTrialLength sets the number of samples per trial.
func WithTrialLength(n int) Option {
	return func(p *Preprocessor) {
		p.trialLength = n
	}
}

// WithZeroVariancePolicy selects how zero-variance channels are handled.
func WithZeroVariancePolicy(policy ZeroVariancePolicy) Option {
	return func(p *Preprocessor) {
		p.policy = policy
	}
}

// WithEpsilon sets the substitute standard deviation for the epsilon policy.
func WithEpsilon(eps float64) Option {
	return func(p *Preprocessor) {
		if eps > 0 {
			p.epsilon = eps
		}
	}
}
