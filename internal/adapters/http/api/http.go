// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	InferenceDependencies
	PredictDependencies
	ResultsDependencies
}

// Result is the stored inference shape returned by result queries.
type Result = model.Result

// Server wires HTTP routes for the inference API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	inferenceHandler *InferenceHandler
	predictHandler   *PredictHandler
	resultsHandler   *ResultsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		inferenceHandler: NewInferenceHandler(deps, opts...),
		predictHandler:   NewPredictHandler(deps),
		resultsHandler:   NewResultsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/run_inference/trials", MetricsMiddleware(s.inferenceHandler.HandleRunAllTrials, "run_inference_trials"))
	mux.HandleFunc("/run_inference/", MetricsMiddleware(s.inferenceHandler.HandleRunInference, "run_inference"))
	mux.HandleFunc("/predict-from-saved/", MetricsMiddleware(s.predictHandler.HandlePredictFromSaved, "predict_from_saved"))
	mux.HandleFunc("/results", MetricsMiddleware(s.resultsHandler.HandleListResults, "results"))
	mux.HandleFunc("/results/", MetricsMiddleware(s.resultsHandler.HandleGetResult, "result"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	if errors.Is(err, service.ErrInvalidRecording) {
		resp.Reason = service.RejectReason(err)
	}
	writeJSON(w, status, resp)
}

// writeFailure maps an error from the service layer onto a status and code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMissingFile), errors.Is(err, ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUploadTooLarge), errors.Is(err, ErrEntityTooBig), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, service.ErrInvalidRecording):
		return http.StatusUnprocessableEntity, "invalid_recording"
	case errors.Is(err, service.ErrNoResults), errors.Is(err, service.ErrResultNotFound), errors.Is(err, ErrUnknownResult):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
