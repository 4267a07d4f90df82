package unet

import "fmt"

// Tensor is a [C, L] activation in channel-major order.
type Tensor struct {
	C    int
	L    int
	Data []float32
}

// NewTensor wraps data as a [c, l] tensor without copying.
func NewTensor(c, l int, data []float32) (Tensor, error) {
	if c <= 0 || l < 0 || len(data) != c*l {
		return Tensor{}, fmt.Errorf("%w: %dx%d with %d values", ErrParamShape, c, l, len(data))
	}
	return Tensor{C: c, L: l, Data: data}, nil
}

func zeros(c, l int) Tensor {
	return Tensor{C: c, L: l, Data: make([]float32, c*l)}
}

// Row returns channel c. The slice aliases the tensor.
func (t Tensor) Row(c int) []float32 {
	return t.Data[c*t.L : (c+1)*t.L]
}

// Param is a model parameter in the weights file layout: convolutions are
// (out, in, k), transposed convolutions (in, out, k).
type Param struct {
	Shape []int
	Data  []float32
}

// Size is the element count implied by the shape.
func (p Param) Size() int {
	n := 1
	for _, d := range p.Shape {
		n *= d
	}
	return n
}

// Weights maps state-dict names to parameters.
type Weights map[string]Param

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
