package api

import (
	"context"
	"net/http"

	"github.com/okian/nsted/internal/domain/classify"
)

// PredictDependencies defines the saved-prediction lookup.
type PredictDependencies interface {
	PredictedClass(ctx context.Context) (string, error)
}

// PredictHandler handles saved-prediction requests.
type PredictHandler struct {
	deps PredictDependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

type predictResponse struct {
	PredictedClass string `json:"predicted_class"`
	Conclusion     string `json:"conclusion"`
}

// HandlePredictFromSaved handles GET /predict-from-saved/ requests.
func (h *PredictHandler) HandlePredictFromSaved(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/predict-from-saved/" {
		http.NotFound(w, r)
		return
	}
	class, err := h.deps.PredictedClass(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{
		PredictedClass: class,
		Conclusion:     classify.Conclusion(classify.Label(class)),
	})
}
