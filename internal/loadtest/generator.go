package loadtest

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/nsted/internal/adapters/matfile"
)

// Recording is one synthetic upload.
type Recording struct {
	Name    string
	Data    []byte
	Invalid bool
}

// Generate builds n recordings. Channels carry sinusoids at per-channel
// frequencies plus gaussian noise so no channel has zero variance.
func Generate(cfg *Config, n int) ([]Recording, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	out := make([]Recording, n)
	for i := range out {
		invalid := cfg.InvalidEvery > 0 && (i+1)%cfg.InvalidEvery == 0
		channels := cfg.Channels
		if invalid {
			channels--
		}
		data, err := Encode(rng, cfg.DataKey, channels, cfg.Samples)
		if err != nil {
			return nil, fmt.Errorf("recording %d: %w", i, err)
		}
		out[i] = Recording{
			Name:    uuid.NewString() + ".mat",
			Data:    data,
			Invalid: invalid,
		}
	}
	return out, nil
}

// Encode writes a single channels x samples recording under key as MAT bytes.
func Encode(rng *rand.Rand, key string, channels, samples int) ([]byte, error) {
	rows := make([]float64, channels*samples)
	for c := 0; c < channels; c++ {
		freq := 0.01 + 0.002*float64(c)
		amp := 5 + 20*rng.Float64()
		phase := 2 * math.Pi * rng.Float64()
		for s := 0; s < samples; s++ {
			rows[c*samples+s] = amp*math.Sin(freq*float64(s)+phase) + rng.NormFloat64()
		}
	}
	v, err := matfile.FromRows(key, channels, samples, rows)
	if err != nil {
		return nil, err
	}
	return matfile.Encode([]*matfile.Variable{v}, matfile.WithCompression())
}
