package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nsted/internal/domain/model"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 500
)

// ResultsDependencies defines read access to stored results.
type ResultsDependencies interface {
	Result(ctx context.Context, id string) (*model.Result, error)
	Results(ctx context.Context, n int) ([]model.Summary, error)
}

// ResultsHandler handles result queries.
type ResultsHandler struct {
	deps ResultsDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultsDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

type summaryResponse struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
	NumTrials      int       `json:"num_trials"`
	PredictedClass string    `json:"predicted_class"`
	MeanScore      float64   `json:"mean_score"`
}

type resultsResponse struct {
	Results []summaryResponse `json:"results"`
	Count   int               `json:"count"`
}

type resultResponse struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
	Channels       int       `json:"channels"`
	Samples        int       `json:"samples"`
	NumTrials      int       `json:"num_trials"`
	TrialLength    int       `json:"trial_length"`
	TrialIndex     int       `json:"trial_index"`
	PredictedClass string    `json:"predicted_class"`
	MeanScore      float64   `json:"mean_score"`
	Predictions    []float64 `json:"predictions"`
	AverageChannel int       `json:"average_channel"`
	AveragePath    string    `json:"average_path,omitempty"`
}

// HandleListResults handles GET /results?limit=N requests.
func (h *ResultsHandler) HandleListResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_results"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxResultsLimit {
			writeFailure(w, WrapKind(op, ErrInvalidLimit, strconv.ErrRange))
			return
		}
		limit = n
	}
	list, err := h.deps.Results(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := resultsResponse{Results: make([]summaryResponse, len(list)), Count: len(list)}
	for i, s := range list {
		out.Results[i] = summaryResponse{
			ID:             s.ID,
			FileName:       s.FileName,
			CreatedAt:      s.CreatedAt,
			NumTrials:      s.NumTrials,
			PredictedClass: s.PredictedClass,
			MeanScore:      s.MeanScore,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetResult handles GET /results/{id} requests.
func (h *ResultsHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_result"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/results/")
	if id == "" || strings.Contains(id, "/") {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	res, err := h.deps.Result(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		ID:             res.ID,
		FileName:       res.FileName,
		CreatedAt:      res.CreatedAt,
		Channels:       res.Channels,
		Samples:        res.Samples,
		NumTrials:      res.NumTrials,
		TrialLength:    res.TrialLength,
		TrialIndex:     res.TrialIndex,
		PredictedClass: res.PredictedClass,
		MeanScore:      res.MeanScore,
		Predictions:    res.Predictions,
		AverageChannel: res.AverageChannel,
		AveragePath:    res.AveragePath,
	})
}
