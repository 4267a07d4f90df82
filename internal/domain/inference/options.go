package inference

import "runtime"

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithConcurrency bounds how many trials RunAll scores at once.
// Values below one fall back to the number of CPUs.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		r.concurrency = n
	}
}
