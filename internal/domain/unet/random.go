package unet

import (
	"math"
	"math/rand/v2"
	"strings"
)

// RandomWeights builds a deterministic weight set for arch: convolution
// kernels are drawn from N(0, 2/fan_in), biases are zero and batch norm is
// the identity. The same seed always yields the same weights.
func RandomWeights(arch Architecture, seed uint64) (Weights, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	specs := arch.ParamSpecs()
	w := make(Weights, len(specs))
	for _, s := range specs {
		p := Param{Shape: s.Shape}
		p.Data = make([]float32, p.Size())

		switch {
		case strings.HasSuffix(s.Name, ".running_var"):
			fill(p.Data, 1)
		case strings.Contains(s.Name, ".bn") && strings.HasSuffix(s.Name, ".weight"):
			fill(p.Data, 1)
		case strings.HasSuffix(s.Name, ".weight"):
			std := math.Sqrt(2 / float64(fanIn(s)))
			for i := range p.Data {
				p.Data[i] = float32(rng.NormFloat64() * std)
			}
		}
		w[s.Name] = p
	}
	return w, nil
}

// fanIn is the second dimension times the kernel size for both
// convolution layouts.
func fanIn(s ParamSpec) int {
	return s.Shape[1] * s.Shape[2]
}

func fill(xs []float32, v float32) {
	for i := range xs {
		xs[i] = v
	}
}
