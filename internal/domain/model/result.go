// Package model contains domain models passed between layers.
package model

import "time"

// Result is one completed inference request as persisted and reported.
type Result struct {
	ID             string    // uuid assigned when stored
	FileName       string    // uploaded file name, informational
	CreatedAt      time.Time // time the result was stored
	Channels       int       // recording channels
	Samples        int       // recording samples per channel
	NumTrials      int       // trials produced by segmentation
	TrialLength    int       // samples per trial
	TrialIndex     int       // trial the predictions belong to
	PredictedClass string    // classifier label
	MeanScore      float64   // mean of Predictions
	Predictions    []float64 // one probability per trial sample
	AverageChannel int       // channel whose average was saved
	AveragePath    string    // artifact location, empty if not saved
}

// Summary is the listing view of a Result without the prediction trace.
type Summary struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
	NumTrials      int       `json:"num_trials"`
	PredictedClass string    `json:"predicted_class"`
	MeanScore      float64   `json:"mean_score"`
}

// Summary drops the per-sample predictions.
func (r *Result) Summary() Summary {
	return Summary{
		ID:             r.ID,
		FileName:       r.FileName,
		CreatedAt:      r.CreatedAt,
		NumTrials:      r.NumTrials,
		PredictedClass: r.PredictedClass,
		MeanScore:      r.MeanScore,
	}
}
