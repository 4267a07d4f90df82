// Package unet implements inference for the 1-D U-Net that scores every
// sample of a multichannel EEG trial.
package unet

import (
	"fmt"
	"sort"
	"strings"
)

// block is two same-padded convolutions, each followed by batch norm and ReLU.
type block struct {
	conv1 *conv1d
	bn1   *batchNorm
	conv2 *conv1d
	bn2   *batchNorm
}

func (b *block) forward(x Tensor) Tensor {
	x = b.bn1.forwardReLU(b.conv1.forward(x))
	return b.bn2.forwardReLU(b.conv2.forward(x))
}

// Model is an immutable, loaded network. Forward allocates its own
// activations, so a Model is safe for concurrent use.
type Model struct {
	arch Architecture

	enc1, enc2, enc3, enc4 *block
	up1, up2, up3          *convTranspose1d
	dec1, dec2, dec3       *block
	final                  *conv1d
}

// NewModel validates weights against the architecture and builds a model.
// Every parameter listed by ParamSpecs must be present with the exact shape;
// unknown names are rejected except num_batches_tracked counters.
func NewModel(arch Architecture, w Weights) (*Model, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	specs := arch.ParamSpecs()
	known := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		known[s.Name] = struct{}{}
		p, ok := w[s.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, s.Name)
		}
		if !shapeEqual(p.Shape, s.Shape) || len(p.Data) != (Param{Shape: s.Shape}).Size() {
			return nil, fmt.Errorf("%w: %s has shape %v (%d values), want %v", ErrParamShape, s.Name, p.Shape, len(p.Data), s.Shape)
		}
	}

	var extra []string
	for name := range w {
		if _, ok := known[name]; ok || strings.HasSuffix(name, ".num_batches_tracked") {
			continue
		}
		extra = append(extra, name)
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedParam, strings.Join(extra, ", "))
	}

	bw := arch.BaseWidth
	m := &Model{
		arch: arch,
		enc1: newBlock(w, "encoder.enc1", arch.InChannels, bw),
		enc2: newBlock(w, "encoder.enc2", bw, 2*bw),
		enc3: newBlock(w, "encoder.enc3", 2*bw, 4*bw),
		enc4: newBlock(w, "encoder.enc4", 4*bw, 8*bw),
		up1:  newUp(w, "decoder.up1", 8*bw, 4*bw),
		dec1: newBlock(w, "decoder.dec1", 8*bw, 4*bw),
		up2:  newUp(w, "decoder.up2", 4*bw, 2*bw),
		dec2: newBlock(w, "decoder.dec2", 4*bw, 2*bw),
		up3:  newUp(w, "decoder.up3", 2*bw, bw),
		dec3: newBlock(w, "decoder.dec3", 2*bw, bw),
		final: &conv1d{
			in: bw, out: 1, k: 1,
			w: w["decoder.final_conv.weight"].Data,
			b: w["decoder.final_conv.bias"].Data,
		},
	}
	return m, nil
}

func newBlock(w Weights, prefix string, in, out int) *block {
	bn := func(name string) *batchNorm {
		return newBatchNorm(
			w[name+".weight"].Data,
			w[name+".bias"].Data,
			w[name+".running_mean"].Data,
			w[name+".running_var"].Data,
		)
	}
	return &block{
		conv1: &conv1d{in: in, out: out, k: 3, w: w[prefix+".conv1.weight"].Data, b: w[prefix+".conv1.bias"].Data},
		bn1:   bn(prefix + ".bn1"),
		conv2: &conv1d{in: out, out: out, k: 3, w: w[prefix+".conv2.weight"].Data, b: w[prefix+".conv2.bias"].Data},
		bn2:   bn(prefix + ".bn2"),
	}
}

func newUp(w Weights, name string, in, out int) *convTranspose1d {
	return &convTranspose1d{in: in, out: out, w: w[name+".weight"].Data, b: w[name+".bias"].Data}
}

// Architecture returns the model's dimensions.
func (m *Model) Architecture() Architecture { return m.arch }

// Forward scores one [InChannels, L] trial and returns L values in [0, 1].
// The input is not modified.
func (m *Model) Forward(x Tensor) ([]float32, error) {
	if x.C != m.arch.InChannels {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrChannelMismatch, m.arch.InChannels, x.C)
	}
	if x.L == 0 {
		return nil, ErrEmptyInput
	}
	if len(x.Data) != x.C*x.L {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrParamShape, x.C, x.L, len(x.Data))
	}

	x1 := m.enc1.forward(x)
	x2 := m.enc2.forward(maxPool(x1))
	x3 := m.enc3.forward(maxPool(x2))
	x4 := m.enc4.forward(maxPool(x3))

	y := m.up1.forward(x4)
	y = m.dec1.forward(concat(y, cropOrPad(x3, y.L)))
	y = m.up2.forward(y)
	y = m.dec2.forward(concat(y, cropOrPad(x2, y.L)))
	y = m.up3.forward(y)
	y = m.dec3.forward(concat(y, cropOrPad(x1, y.L)))

	out := cropOrPad(m.final.forward(y), x1.L).Data
	for i, v := range out {
		out[i] = sigmoid(v)
	}
	return out, nil
}
