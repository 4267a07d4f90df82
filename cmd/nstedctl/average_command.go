package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/nsted/internal/adapters/artifacts"
	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/domain/eeg"
)

type averageOutput struct {
	Channel int    `json:"channel"`
	Trials  int    `json:"trials"`
	Samples int    `json:"samples"`
	Path    string `json:"path"`
}

func newAverageCommand(ctx *commandContext) *cobra.Command {
	var channel int
	var outDir string
	var compress bool

	cmd := &cobra.Command{
		Use:   "average FILE",
		Short: "Write the trial-averaged waveform of one channel as a MAT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("channel") {
				channel = cfg.ChannelIndex
			}
			if outDir == "" {
				outDir = cfg.ArtifactDir
			}

			rec, err := readRecording(args[0], cfg.DataKey, cfg.MaxRecordingBytes())
			if err != nil {
				return err
			}
			pre, err := service.NewPreprocessor(cfg)
			if err != nil {
				return err
			}
			seg, st, err := pre.Preprocess(rec)
			if err != nil {
				return err
			}
			avg, err := eeg.ChannelAverage(seg, st, channel)
			if err != nil {
				return err
			}
			path, err := artifacts.NewWriter(outDir, artifacts.WithCompression(compress)).
				SaveChannelAverage(cmd.Context(), channel, avg)
			if err != nil {
				return err
			}

			out := averageOutput{Channel: channel, Trials: seg.Trials, Samples: len(avg), Path: path}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, out)
			}
			printTable(cmd, renderFields([][2]string{
				{"Channel", strconv.Itoa(out.Channel)},
				{"Variable", artifacts.VariableName(out.Channel)},
				{"Trials averaged", strconv.Itoa(out.Trials)},
				{"Samples", strconv.Itoa(out.Samples)},
				{"Path", out.Path},
			}))
			return nil
		},
	}

	cmd.Flags().IntVar(&channel, "channel", 0, "Channel index to average (defaults to the configured channel_index)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (defaults to the configured artifact_dir)")
	cmd.Flags().BoolVar(&compress, "compress", false, "Write a zlib-compressed MAT element")
	return cmd
}
