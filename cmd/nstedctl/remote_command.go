package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/nsted/internal/client"
	"github.com/okian/nsted/internal/loadtest"
	"github.com/okian/nsted/pkg/logger"
)

const defaultServiceURL = "http://localhost:8000"

func newRemoteCommand(ctx *commandContext) *cobra.Command {
	var baseURL string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:         "remote",
		Short:       "Call a running inference service",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", defaultServiceURL, "Base URL of the service")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "Per-request timeout")

	newClient := func() (*client.Client, error) {
		return client.New(baseURL, client.WithTimeout(timeout))
	}

	cmd.AddCommand(newRemoteUploadCommand(ctx, newClient))
	cmd.AddCommand(newRemoteClassCommand(ctx, newClient))
	cmd.AddCommand(newRemoteLoadCommand(ctx, &baseURL, &timeout))
	return cmd
}

func newRemoteUploadCommand(ctx *commandContext, newClient func() (*client.Client, error)) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a MAT recording for inference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()
			name := filepath.Base(args[0])

			if all {
				out, err := c.UploadTrials(cmd.Context(), name, f)
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, out)
				}
				printTable(cmd, renderFields([][2]string{
					{"ID", out.ID},
					{"Trials", strconv.Itoa(out.NumTrials)},
					{"Predicted class", out.PredictedClass},
					{"Mean score", formatFloat(out.MeanScore)},
				}))
				printTable(cmd, renderTrials(out.Trials))
				return nil
			}

			out, err := c.Upload(cmd.Context(), name, f)
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, out)
			}
			printTable(cmd, renderFields([][2]string{
				{"ID", out.ID},
				{"Trials", strconv.Itoa(out.NumTrials)},
				{"Predicted class", out.PredictedClass},
				{"Mean score", formatFloat(out.MeanScore)},
				{"Predictions", strconv.Itoa(len(out.Predictions))},
				{"Average artifact", out.AveragePath},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Run every trial")
	return cmd
}

func newRemoteClassCommand(ctx *commandContext, newClient func() (*client.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "class",
		Short: "Show the label of the most recent stored result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			out, err := c.PredictedClass(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, out)
			}
			printTable(cmd, renderFields([][2]string{
				{"Predicted class", out.PredictedClass},
				{"Conclusion", out.Conclusion},
			}))
			return nil
		},
	}
}

type loadOutput struct {
	Uploads          int            `json:"uploads"`
	Succeeded        int            `json:"succeeded"`
	Rejected         int            `json:"rejected"`
	Unexpected       int            `json:"unexpected"`
	Failed           int            `json:"failed"`
	Classes          map[string]int `json:"classes"`
	SavedClass       string         `json:"saved_class"`
	P50Ms            float64        `json:"p50_ms"`
	P95Ms            float64        `json:"p95_ms"`
	MaxMs            float64        `json:"max_ms"`
	UploadsPerSecond float64        `json:"uploads_per_second"`
}

func newRemoteLoadCommand(ctx *commandContext, baseURL *string, timeout *time.Duration) *cobra.Command {
	var uploads, workers, samples, invalidEvery int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upload synthetic recordings concurrently and report latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadtest.NewConfig(*baseURL)
			cfg.Uploads = uploads
			cfg.Workers = workers
			cfg.Samples = samples
			cfg.InvalidEvery = invalidEvery
			cfg.Seed = seed
			cfg.Timeout = *timeout

			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			stats, err := loadtest.Run(cmd.Context(), cfg, logger.Named("load"))
			if err != nil {
				return err
			}

			view := loadOutput{
				Uploads:          stats.Uploads,
				Succeeded:        stats.Succeeded,
				Rejected:         stats.Rejected,
				Unexpected:       stats.Unexpected,
				Failed:           stats.Failed,
				Classes:          stats.Classes,
				SavedClass:       stats.SavedClass,
				P50Ms:            ms(stats.P50),
				P95Ms:            ms(stats.P95),
				MaxMs:            ms(stats.Max),
				UploadsPerSecond: stats.Throughput(),
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, view)
			}
			fields := [][2]string{
				{"Uploads", strconv.Itoa(view.Uploads)},
				{"Succeeded", strconv.Itoa(view.Succeeded)},
				{"Rejected (expected)", strconv.Itoa(view.Rejected)},
				{"Unexpected", strconv.Itoa(view.Unexpected)},
				{"Failed", strconv.Itoa(view.Failed)},
				{"Latency p50 / p95 / max (ms)", formatFloat(view.P50Ms) + " / " + formatFloat(view.P95Ms) + " / " + formatFloat(view.MaxMs)},
				{"Uploads per second", formatFloat(view.UploadsPerSecond)},
				{"Saved class", view.SavedClass},
			}
			classes := make([]string, 0, len(view.Classes))
			for class := range view.Classes {
				classes = append(classes, class)
			}
			sort.Strings(classes)
			for _, class := range classes {
				fields = append(fields, [2]string{"Class " + class, strconv.Itoa(view.Classes[class])})
			}
			printTable(cmd, renderFields(fields))
			return nil
		},
	}

	cmd.Flags().IntVar(&uploads, "uploads", loadtest.DefaultUploads, "Number of recordings to upload")
	cmd.Flags().IntVar(&workers, "workers", loadtest.DefaultWorkers, "Concurrent uploaders")
	cmd.Flags().IntVar(&samples, "samples", loadtest.DefaultSamples, "Samples per synthetic recording")
	cmd.Flags().IntVar(&invalidEvery, "invalid-every", 0, "Make every n-th upload a 128-channel recording")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed for the synthetic recordings")
	return cmd
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
