package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/nsted/internal/adapters/safetensors"
	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/domain/unet"
)

type weightsInitOutput struct {
	Path       string `json:"path"`
	InChannels int    `json:"in_channels"`
	BaseWidth  int    `json:"base_width"`
	Seed       uint64 `json:"seed"`
	Parameters int    `json:"parameters"`
}

type paramRow struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Size   int    `json:"size"`
	Status string `json:"status"`
}

type weightsInspectOutput struct {
	Path       string            `json:"path"`
	InChannels int               `json:"in_channels"`
	BaseWidth  int               `json:"base_width"`
	Parameters int               `json:"parameters"`
	Valid      bool              `json:"valid"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Params     []paramRow        `json:"params"`
}

func newWeightsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "weights",
		Short:       "Create and inspect safetensors weight files",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newWeightsInitCommand(ctx))
	cmd.AddCommand(newWeightsInspectCommand(ctx))
	return cmd
}

func newWeightsInitCommand(ctx *commandContext) *cobra.Command {
	var out string
	var seed uint64
	var baseWidth, inChannels int

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write deterministic random weights for a network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch := unet.Architecture{InChannels: inChannels, BaseWidth: baseWidth}
			w, err := unet.RandomWeights(arch, seed)
			if err != nil {
				return err
			}
			meta := service.ArchitectureMetadata(arch)
			meta["seed"] = strconv.FormatUint(seed, 10)
			if err := safetensors.SaveWeights(out, w, meta); err != nil {
				return err
			}

			view := weightsInitOutput{
				Path:       out,
				InChannels: arch.InChannels,
				BaseWidth:  arch.BaseWidth,
				Seed:       seed,
				Parameters: arch.ParameterCount(),
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, view)
			}
			printTable(cmd, renderFields([][2]string{
				{"Path", view.Path},
				{"Input channels", strconv.Itoa(view.InChannels)},
				{"Base width", strconv.Itoa(view.BaseWidth)},
				{"Seed", strconv.FormatUint(view.Seed, 10)},
				{"Parameters", strconv.Itoa(view.Parameters)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Destination .safetensors path")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().IntVar(&baseWidth, "base-width", unet.DefaultBaseWidth, "Width of the first encoder stage")
	cmd.Flags().IntVar(&inChannels, "in-channels", unet.DefaultInChannels, "Input channel count")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newWeightsInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect PATH",
		Short: "List the parameters of a weight file and check them against the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, meta, err := safetensors.LoadWeights(args[0])
			if err != nil {
				return err
			}
			arch, err := service.ArchitectureFromMetadata(meta)
			if err != nil {
				return err
			}
			view := inspectWeights(args[0], arch, w, meta)

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, view)
			}
			valid := yesNo(view.Valid)
			if view.Error != "" {
				valid += " (" + view.Error + ")"
			}
			printTable(cmd, renderFields([][2]string{
				{"Path", view.Path},
				{"Input channels", strconv.Itoa(view.InChannels)},
				{"Base width", strconv.Itoa(view.BaseWidth)},
				{"Parameters", strconv.Itoa(view.Parameters)},
				{"Valid", valid},
			}))
			rows := make([][]string, len(view.Params))
			for i, p := range view.Params {
				rows[i] = []string{p.Name, formatShape(p.Shape), strconv.Itoa(p.Size), p.Status}
			}
			printTable(cmd, renderTable([]string{"Name", "Shape", "Size", "Status"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

// inspectWeights lists parameters in network order, then any the network does not use.
func inspectWeights(path string, arch unet.Architecture, w unet.Weights, meta map[string]string) weightsInspectOutput {
	view := weightsInspectOutput{
		Path:       path,
		InChannels: arch.InChannels,
		BaseWidth:  arch.BaseWidth,
		Metadata:   meta,
	}
	known := map[string]bool{}
	for _, spec := range arch.ParamSpecs() {
		known[spec.Name] = true
		p, ok := w[spec.Name]
		row := paramRow{Name: spec.Name, Shape: spec.Shape, Status: "ok"}
		switch {
		case !ok:
			row.Status = "missing"
		case !slices.Equal(p.Shape, spec.Shape):
			row.Shape = p.Shape
			row.Status = "shape " + formatShape(spec.Shape) + " expected"
		}
		if ok {
			row.Size = p.Size()
			view.Parameters += row.Size
		}
		view.Params = append(view.Params, row)
	}

	var extra []string
	for name := range w {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	for _, name := range extra {
		p := w[name]
		view.Params = append(view.Params, paramRow{Name: name, Shape: p.Shape, Size: p.Size(), Status: "unused"})
	}

	if _, err := unet.NewModel(arch, w); err != nil {
		view.Error = err.Error()
	} else {
		view.Valid = true
	}
	return view
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}
