package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/nsted/internal/app"
)

const (
	// DefaultMaxUploadBytes caps a MAT upload when no option is given.
	DefaultMaxUploadBytes = 64 << 20
	// multipartSlack covers boundaries and part headers around the file.
	multipartSlack = 1 << 20
	uploadField    = "file"
)

// InferenceDependencies defines the pipeline operations behind the upload endpoints.
type InferenceDependencies interface {
	RunInference(ctx context.Context, up service.Upload) (*service.Outcome, error)
	RunAllTrials(ctx context.Context, up service.Upload) (*service.BatchOutcome, error)
}

// InferenceHandler handles MAT uploads.
type InferenceHandler struct {
	deps           InferenceDependencies
	maxUploadBytes int64
}

// NewInferenceHandler creates a new inference handler.
func NewInferenceHandler(deps InferenceDependencies, opts ...Option) *InferenceHandler {
	h := &InferenceHandler{deps: deps, maxUploadBytes: DefaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inferenceResponse struct {
	Predictions    []float64 `json:"predictions"`
	ID             string    `json:"id"`
	NumTrials      int       `json:"num_trials"`
	PredictedClass string    `json:"predicted_class"`
	MeanScore      float64   `json:"mean_score"`
	AveragePath    string    `json:"average_path,omitempty"`
}

type trialsResponse struct {
	ID              string      `json:"id"`
	NumTrials       int         `json:"num_trials"`
	PredictedClass  string      `json:"predicted_class"`
	MeanScore       float64     `json:"mean_score"`
	MeanPredictions []float64   `json:"mean_predictions"`
	Trials          [][]float64 `json:"trials"`
	AveragePath     string      `json:"average_path,omitempty"`
}

// HandleRunInference handles POST /run_inference/ requests.
func (h *InferenceHandler) HandleRunInference(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_inference"
	if r.Method != http.MethodPost || r.URL.Path != "/run_inference/" {
		http.NotFound(w, r)
		return
	}
	up, err := h.upload(w, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	out, err := h.deps.RunInference(r.Context(), up)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res := out.Result
	writeJSON(w, http.StatusOK, inferenceResponse{
		Predictions:    res.Predictions,
		ID:             res.ID,
		NumTrials:      res.NumTrials,
		PredictedClass: res.PredictedClass,
		MeanScore:      res.MeanScore,
		AveragePath:    res.AveragePath,
	})
}

// HandleRunAllTrials handles POST /run_inference/trials requests.
func (h *InferenceHandler) HandleRunAllTrials(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_all_trials"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	up, err := h.upload(w, r, op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	out, err := h.deps.RunAllTrials(r.Context(), up)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res := out.Result
	writeJSON(w, http.StatusOK, trialsResponse{
		ID:              res.ID,
		NumTrials:       res.NumTrials,
		PredictedClass:  res.PredictedClass,
		MeanScore:       res.MeanScore,
		MeanPredictions: res.Predictions,
		Trials:          out.Trials,
		AveragePath:     res.AveragePath,
	})
}

// upload finds the "file" part of a multipart body. The part streams from the
// request, so it must be consumed before the handler returns.
func (h *InferenceHandler) upload(w http.ResponseWriter, r *http.Request, op string) (service.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartSlack)
	mr, err := r.MultipartReader()
	if err != nil {
		return service.Upload{}, WrapKind(op, ErrBadRequest, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return service.Upload{}, NewKind(op, ErrMissingFile)
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return service.Upload{}, WrapKind(op, ErrEntityTooBig, err)
			}
			return service.Upload{}, WrapKind(op, ErrBadRequest, err)
		}
		if part.FormName() == uploadField {
			return service.Upload{FileName: part.FileName(), Body: part}, nil
		}
	}
}
