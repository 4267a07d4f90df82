package unet

import "math"

// bnEps matches the running-statistics epsilon of the trained network.
const bnEps = 1e-5

// conv1d is a stride-1 convolution with "same" padding. w has shape
// [out, in, k]; for even k the extra padding goes on the right.
type conv1d struct {
	in, out, k int
	w, b       []float32
}

func (c *conv1d) forward(x Tensor) Tensor {
	y := zeros(c.out, x.L)
	left := (c.k - 1) / 2
	L := x.L
	for o := 0; o < c.out; o++ {
		dst := y.Row(o)
		bias := c.b[o]
		for t := range dst {
			dst[t] = bias
		}
		for i := 0; i < c.in; i++ {
			src := x.Row(i)
			wrow := c.w[(o*c.in+i)*c.k : (o*c.in+i+1)*c.k]
			for j, wj := range wrow {
				shift := j - left
				lo, hi := 0, L
				if shift < 0 {
					lo = -shift
				} else {
					hi = L - shift
				}
				for t := lo; t < hi; t++ {
					dst[t] += wj * src[t+shift]
				}
			}
		}
	}
	return y
}

// batchNorm is inference-mode batch normalization folded into a per-channel
// affine transform.
type batchNorm struct {
	scale, shift []float32
}

func newBatchNorm(gamma, beta, mean, variance []float32) *batchNorm {
	bn := &batchNorm{
		scale: make([]float32, len(gamma)),
		shift: make([]float32, len(gamma)),
	}
	for i := range gamma {
		s := float64(gamma[i]) / math.Sqrt(float64(variance[i])+bnEps)
		bn.scale[i] = float32(s)
		bn.shift[i] = float32(float64(beta[i]) - float64(mean[i])*s)
	}
	return bn
}

// forwardReLU applies the normalization and a ReLU in place.
func (bn *batchNorm) forwardReLU(x Tensor) Tensor {
	for c := 0; c < x.C; c++ {
		s, h := bn.scale[c], bn.shift[c]
		row := x.Row(c)
		for t, v := range row {
			v = v*s + h
			if v < 0 {
				v = 0
			}
			row[t] = v
		}
	}
	return x
}

// maxPool halves the length with kernel 2, stride 2 and ceiling mode: an odd
// trailing sample forms a window of its own. A NaN in a window wins.
func maxPool(x Tensor) Tensor {
	outL := (x.L + 1) / 2
	y := zeros(x.C, outL)
	for c := 0; c < x.C; c++ {
		src, dst := x.Row(c), y.Row(c)
		for i := range dst {
			v := src[2*i]
			if 2*i+1 < x.L {
				if w := src[2*i+1]; w > v || w != w {
					v = w
				}
			}
			dst[i] = v
		}
	}
	return y
}

// convTranspose1d is a kernel-2 stride-2 transposed convolution that doubles
// the length. w has shape [in, out, 2].
type convTranspose1d struct {
	in, out int
	w, b    []float32
}

func (c *convTranspose1d) forward(x Tensor) Tensor {
	y := zeros(c.out, 2*x.L)
	for o := 0; o < c.out; o++ {
		dst := y.Row(o)
		bias := c.b[o]
		for t := range dst {
			dst[t] = bias
		}
		for i := 0; i < c.in; i++ {
			src := x.Row(i)
			w0 := c.w[(i*c.out+o)*2]
			w1 := c.w[(i*c.out+o)*2+1]
			for t, v := range src {
				dst[2*t] += v * w0
				dst[2*t+1] += v * w1
			}
		}
	}
	return y
}

// cropOrPad fits x to target samples. A longer x is cropped starting at
// floor(diff/2); a shorter one is zero-padded with floor(diff/2) samples on
// the left and the rest on the right.
func cropOrPad(x Tensor, target int) Tensor {
	if x.L == target {
		return x
	}
	y := zeros(x.C, target)
	if x.L > target {
		start := (x.L - target) / 2
		for c := 0; c < x.C; c++ {
			copy(y.Row(c), x.Row(c)[start:start+target])
		}
		return y
	}
	left := (target - x.L) / 2
	for c := 0; c < x.C; c++ {
		copy(y.Row(c)[left:], x.Row(c))
	}
	return y
}

// concat stacks a's channels before b's. Both must share a length.
func concat(a, b Tensor) Tensor {
	y := Tensor{C: a.C + b.C, L: a.L, Data: make([]float32, 0, len(a.Data)+len(b.Data))}
	y.Data = append(y.Data, a.Data...)
	y.Data = append(y.Data, b.Data...)
	return y
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}
