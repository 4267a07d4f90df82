package main

import (
	"strconv"

	"github.com/spf13/cobra"

	service "github.com/okian/nsted/internal/app"
)

type channelStats struct {
	Channel int     `json:"channel"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
}

type segmentOutput struct {
	Channels    int            `json:"channels"`
	Samples     int            `json:"samples"`
	TrialLength int            `json:"trial_length"`
	Trials      int            `json:"trials"`
	Dropped     int            `json:"dropped_samples"`
	Policy      string         `json:"zero_variance_policy"`
	PerChannel  []channelStats `json:"per_channel"`
}

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var trialLength int

	cmd := &cobra.Command{
		Use:   "segment FILE",
		Short: "Show how a recording splits into trials and its per-channel standardization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configCopy(cmd)
			if err != nil {
				return err
			}
			if trialLength > 0 {
				cfg.TrialLength = trialLength
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

			out := segmentOutput{
				Channels:    rec.Channels,
				Samples:     rec.Samples,
				TrialLength: seg.TrialLength,
				Trials:      seg.Trials,
				Dropped:     rec.Samples - seg.Trials*seg.TrialLength,
				Policy:      pre.Policy().String(),
				PerChannel:  make([]channelStats, len(st.Mean)),
			}
			for c := range st.Mean {
				out.PerChannel[c] = channelStats{Channel: c, Mean: st.Mean[c], Std: st.Std[c]}
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, out)
			}
			printTable(cmd, renderFields([][2]string{
				{"Channels", strconv.Itoa(out.Channels)},
				{"Samples", strconv.Itoa(out.Samples)},
				{"Trial length", strconv.Itoa(out.TrialLength)},
				{"Trials", strconv.Itoa(out.Trials)},
				{"Dropped samples", strconv.Itoa(out.Dropped)},
				{"Zero-variance policy", out.Policy},
			}))
			rows := make([][]string, len(out.PerChannel))
			for i, c := range out.PerChannel {
				rows[i] = []string{strconv.Itoa(c.Channel), formatFloat(c.Mean), formatFloat(c.Std)}
			}
			printTable(cmd, renderTable([]string{"Channel", "Mean", "Std"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVar(&trialLength, "trial-length", 0, "Samples per trial (defaults to the configured trial_length)")
	return cmd
}
