package unet

import "fmt"

// Default architecture dimensions of the trained network.
const (
	DefaultInChannels = 129
	DefaultBaseWidth  = 64
)

// Architecture fixes the channel dimensions. Encoder stages are BaseWidth,
// 2x, 4x and 8x wide; the decoder mirrors the first three.
type Architecture struct {
	InChannels int
	BaseWidth  int
}

// DefaultArchitecture returns the {129, 64} network.
func DefaultArchitecture() Architecture {
	return Architecture{InChannels: DefaultInChannels, BaseWidth: DefaultBaseWidth}
}

// Validate checks that both dimensions are positive.
func (a Architecture) Validate() error {
	if a.InChannels <= 0 || a.BaseWidth <= 0 {
		return fmt.Errorf("%w: in_channels=%d base_width=%d", ErrArchitecture, a.InChannels, a.BaseWidth)
	}
	return nil
}

// ParamSpec names one required parameter and its shape.
type ParamSpec struct {
	Name  string
	Shape []int
}

// ParamSpecs lists every parameter of the architecture in state-dict order.
func (a Architecture) ParamSpecs() []ParamSpec {
	w := a.BaseWidth
	var specs []ParamSpec

	block := func(prefix string, in, out int) {
		specs = append(specs,
			ParamSpec{prefix + ".conv1.weight", []int{out, in, 3}},
			ParamSpec{prefix + ".conv1.bias", []int{out}},
		)
		specs = append(specs, bnSpecs(prefix+".bn1", out)...)
		specs = append(specs,
			ParamSpec{prefix + ".conv2.weight", []int{out, out, 3}},
			ParamSpec{prefix + ".conv2.bias", []int{out}},
		)
		specs = append(specs, bnSpecs(prefix+".bn2", out)...)
	}
	up := func(name string, in, out int) {
		specs = append(specs,
			ParamSpec{name + ".weight", []int{in, out, 2}},
			ParamSpec{name + ".bias", []int{out}},
		)
	}

	block("encoder.enc1", a.InChannels, w)
	block("encoder.enc2", w, 2*w)
	block("encoder.enc3", 2*w, 4*w)
	block("encoder.enc4", 4*w, 8*w)

	up("decoder.up1", 8*w, 4*w)
	block("decoder.dec1", 8*w, 4*w)
	up("decoder.up2", 4*w, 2*w)
	block("decoder.dec2", 4*w, 2*w)
	up("decoder.up3", 2*w, w)
	block("decoder.dec3", 2*w, w)

	specs = append(specs,
		ParamSpec{"decoder.final_conv.weight", []int{1, w, 1}},
		ParamSpec{"decoder.final_conv.bias", []int{1}},
	)
	return specs
}

// ParameterCount is the total number of scalars across ParamSpecs.
func (a Architecture) ParameterCount() int {
	n := 0
	for _, s := range a.ParamSpecs() {
		n += Param{Shape: s.Shape}.Size()
	}
	return n
}

func bnSpecs(prefix string, n int) []ParamSpec {
	return []ParamSpec{
		{prefix + ".weight", []int{n}},
		{prefix + ".bias", []int{n}},
		{prefix + ".running_mean", []int{n}},
		{prefix + ".running_var", []int{n}},
	}
}
