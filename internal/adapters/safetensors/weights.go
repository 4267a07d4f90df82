package safetensors

import (
	"fmt"
	"os"

	"github.com/okian/nsted/internal/domain/unet"
)

// ToWeights converts decoded tensors to model parameters.
func ToWeights(f *File) unet.Weights {
	w := make(unet.Weights, len(f.Tensors))
	for name, t := range f.Tensors {
		w[name] = unet.Param{Shape: t.Shape, Data: t.Data}
	}
	return w
}

// FromWeights converts model parameters to F32 tensors.
func FromWeights(w unet.Weights) map[string]Tensor {
	out := make(map[string]Tensor, len(w))
	for name, p := range w {
		out[name] = Tensor{DType: DTypeF32, Shape: p.Shape, Data: p.Data}
	}
	return out
}

// LoadWeights reads a safetensors file into model parameters.
func LoadWeights(path string) (unet.Weights, map[string]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open weights: %w", err)
	}
	defer fh.Close()

	f, err := Read(fh)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ToWeights(f), f.Metadata, nil
}

// SaveWeights writes model parameters to path, replacing any existing file.
func SaveWeights(path string, w unet.Weights, metadata map[string]string) error {
	b, err := Encode(FromWeights(w), metadata)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	return nil
}
