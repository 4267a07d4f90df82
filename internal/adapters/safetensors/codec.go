// Package safetensors reads and writes the safetensors weight format and
// converts it to model weights.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// Supported dtypes.
const (
	DTypeF32 = "F32"
	DTypeF64 = "F64"
	DTypeI64 = "I64"
)

// MaxHeaderSize bounds the JSON header.
const MaxHeaderSize = 100 << 20

const metadataKey = "__metadata__"

// Tensor is a decoded tensor widened or narrowed to float32.
type Tensor struct {
	DType string
	Shape []int
	Data  []float32
}

// File is a decoded safetensors container.
type File struct {
	Tensors  map[string]Tensor
	Metadata map[string]string
}

type headerEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Read decodes a whole container from r.
func Read(r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read safetensors: %w", err)
	}
	return Decode(b)
}

// Decode parses a container held in memory.
func Decode(b []byte) (*File, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeader, len(b))
	}
	n := binary.LittleEndian.Uint64(b[:8])
	if n > MaxHeaderSize || n > uint64(len(b)-8) {
		return nil, fmt.Errorf("%w: header length %d", ErrHeader, n)
	}
	header := b[8 : 8+n]
	buf := b[8+n:]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}

	f := &File{Tensors: make(map[string]Tensor, len(raw))}
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &f.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrHeader, err)
			}
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrHeader, name, err)
		}
		t, err := decodeTensor(name, e, buf)
		if err != nil {
			return nil, err
		}
		f.Tensors[name] = t
	}
	return f, nil
}

func decodeTensor(name string, e headerEntry, buf []byte) (Tensor, error) {
	width := dtypeWidth(e.DType)
	if width == 0 {
		return Tensor{}, fmt.Errorf("%w: %s is %s", ErrDType, name, e.DType)
	}
	count := 1
	for _, d := range e.Shape {
		if d < 0 {
			return Tensor{}, fmt.Errorf("%w: %s has negative dimension", ErrHeader, name)
		}
		count *= d
	}
	begin, end := e.DataOffsets[0], e.DataOffsets[1]
	if begin < 0 || end < begin || end > int64(len(buf)) || end-begin != int64(count*width) {
		return Tensor{}, fmt.Errorf("%w: %s [%d,%d) for %d x %s in %d bytes", ErrOffsets, name, begin, end, count, e.DType, len(buf))
	}

	raw := buf[begin:end]
	data := make([]float32, count)
	for i := range data {
		p := raw[i*width:]
		switch e.DType {
		case DTypeF32:
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(p))
		case DTypeF64:
			data[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(p)))
		case DTypeI64:
			data[i] = float32(int64(binary.LittleEndian.Uint64(p)))
		}
	}
	return Tensor{DType: e.DType, Shape: append([]int{}, e.Shape...), Data: data}, nil
}

func dtypeWidth(dtype string) int {
	switch dtype {
	case DTypeF32:
		return 4
	case DTypeF64, DTypeI64:
		return 8
	}
	return 0
}

// Encode writes tensors as F32 in name order, preceded by the JSON header.
func Encode(tensors map[string]Tensor, metadata map[string]string) ([]byte, error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if name == metadataKey {
			return nil, fmt.Errorf("%w: reserved tensor name %s", ErrHeader, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	var offset int64
	for _, name := range names {
		t := tensors[name]
		count := 1
		for _, d := range t.Shape {
			count *= d
		}
		if count != len(t.Data) {
			return nil, fmt.Errorf("%w: %s has shape %v but %d values", ErrOffsets, name, t.Shape, len(t.Data))
		}
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		size := int64(4 * len(t.Data))
		header[name] = headerEntry{DType: DTypeF32, Shape: shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	hb, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	// Pad the header with spaces so the data starts 8-byte aligned.
	for (8+len(hb))%8 != 0 {
		hb = append(hb, ' ')
	}

	out := make([]byte, 8, 8+len(hb)+int(offset))
	binary.LittleEndian.PutUint64(out, uint64(len(hb)))
	out = append(out, hb...)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}
