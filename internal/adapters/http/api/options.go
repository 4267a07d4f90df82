package api

// Option applies a configuration option to the InferenceHandler.
type Option func(*InferenceHandler)

// WithMaxUploadBytes caps the request body of upload endpoints.
func WithMaxUploadBytes(n int64) Option {
	return func(h *InferenceHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}
