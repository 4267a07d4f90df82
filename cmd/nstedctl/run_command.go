package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/domain/classify"
	"github.com/okian/nsted/internal/domain/model"
)

type runOutput struct {
	ID             string      `json:"id"`
	File           string      `json:"file"`
	NumTrials      int         `json:"num_trials"`
	TrialLength    int         `json:"trial_length"`
	TrialIndex     int         `json:"trial_index"`
	PredictedClass string      `json:"predicted_class"`
	Conclusion     string      `json:"conclusion"`
	MeanScore      float64     `json:"mean_score"`
	Predictions    []float64   `json:"predictions"`
	Trials         [][]float64 `json:"trials,omitempty"`
	AveragePath    string      `json:"average_path"`
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var trialLength int
	var all bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run the inference pipeline on a MAT recording",
		Long: "Decodes the recording, runs the model on the first trial (or every trial with --all),\n" +
			"stores the result and writes the channel-average artifact, exactly as the service does.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy(cmd)
			if err != nil {
				return err
			}
			if trialLength > 0 {
				cfg.TrialLength = trialLength
			}

			svc, err := service.FromConfig(cmd.Context(), cfg, ctx.log())
			if err != nil {
				return err
			}
			if err := svc.Start(cmd.Context()); err != nil {
				return err
			}
			defer svc.Stop()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()
			up := service.Upload{FileName: filepath.Base(args[0]), Body: f}

			var (
				res    *model.Result
				trials [][]float64
			)
			if all {
				out, err := svc.RunAllTrials(cmd.Context(), up)
				if err != nil {
					return err
				}
				res, trials = out.Result, out.Trials
			} else {
				out, err := svc.RunInference(cmd.Context(), up)
				if err != nil {
					return err
				}
				res = out.Result
			}

			view := runOutput{
				ID:             res.ID,
				File:           res.FileName,
				NumTrials:      res.NumTrials,
				TrialLength:    res.TrialLength,
				TrialIndex:     res.TrialIndex,
				PredictedClass: res.PredictedClass,
				Conclusion:     classify.Conclusion(classify.Label(res.PredictedClass)),
				MeanScore:      res.MeanScore,
				Predictions:    res.Predictions,
				Trials:         trials,
				AveragePath:    res.AveragePath,
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, view)
			}
			printTable(cmd, renderRun(view))
			if len(trials) > 0 {
				printTable(cmd, renderTrials(trials))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&trialLength, "trial-length", 0, "Samples per trial (defaults to the configured trial_length)")
	cmd.Flags().BoolVar(&all, "all", false, "Run every trial and store the mean trace")
	return cmd
}

func renderRun(v runOutput) string {
	trial := strconv.Itoa(v.TrialIndex)
	if v.TrialIndex == service.AllTrials {
		trial = "all (mean)"
	}
	return renderFields([][2]string{
		{"ID", v.ID},
		{"File", v.File},
		{"Trials", strconv.Itoa(v.NumTrials)},
		{"Trial length", strconv.Itoa(v.TrialLength)},
		{"Trial", trial},
		{"Predicted class", v.PredictedClass},
		{"Conclusion", v.Conclusion},
		{"Mean score", formatFloat(v.MeanScore)},
		{"Score range", formatFloat(slices.Min(v.Predictions)) + " .. " + formatFloat(slices.Max(v.Predictions))},
		{"Average artifact", v.AveragePath},
	})
}

func renderTrials(trials [][]float64) string {
	rows := make([][]string, len(trials))
	for i, tr := range trials {
		rows[i] = []string{
			strconv.Itoa(i),
			formatFloat(mean(tr)),
			formatFloat(slices.Min(tr)),
			formatFloat(slices.Max(tr)),
		}
	}
	return renderTable([]string{"Trial", "Mean", "Min", "Max"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight})
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
