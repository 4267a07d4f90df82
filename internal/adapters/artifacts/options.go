package artifacts

import "time"

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithLockTimeout bounds how long a save waits for other writers.
func WithLockTimeout(d time.Duration) Option {
	return func(w *Writer) {
		if d > 0 {
			w.lockTimeout = d
		}
	}
}

// WithCompression stores averages in compressed MAT elements.
func WithCompression(enabled bool) Option {
	return func(w *Writer) {
		w.compress = enabled
	}
}
