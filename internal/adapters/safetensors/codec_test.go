package safetensors_test

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/okian/nsted/internal/adapters/safetensors"
	"github.com/okian/nsted/internal/domain/unet"
	. "github.com/smartystreets/goconvey/convey"
)

// handBuilt assembles a container from a header map and raw data.
func handBuilt(header map[string]any, data []byte) []byte {
	hb, err := json.Marshal(header)
	if err != nil {
		panic(err)
	}
	out := binary.LittleEndian.AppendUint64(nil, uint64(len(hb)))
	out = append(out, hb...)
	return append(out, data...)
}

func TestEncodeDecode(t *testing.T) {
	Convey("Given two F32 tensors and metadata", t, func() {
		tensors := map[string]safetensors.Tensor{
			"a.weight": {Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
			"a.bias":   {Shape: []int{2}, Data: []float32{-0.5, 0.25}},
		}
		b, err := safetensors.Encode(tensors, map[string]string{"format": "pt"})
		So(err, ShouldBeNil)

		Convey("Then the data section starts 8-byte aligned", func() {
			n := binary.LittleEndian.Uint64(b[:8])
			So((8+n)%8, ShouldEqual, 0)
		})

		Convey("When decoding", func() {
			f, err := safetensors.Decode(b)

			Convey("Then tensors and metadata come back", func() {
				So(err, ShouldBeNil)
				So(f.Metadata["format"], ShouldEqual, "pt")
				So(f.Tensors["a.weight"].Shape, ShouldResemble, []int{2, 3})
				So(f.Tensors["a.weight"].Data, ShouldResemble, []float32{1, 2, 3, 4, 5, 6})
				So(f.Tensors["a.bias"].Data, ShouldResemble, []float32{-0.5, 0.25})
			})
		})
	})
}

func TestDecode_DTypes(t *testing.T) {
	Convey("Given F64 and I64 tensors", t, func() {
		var data []byte
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(2.5))
		data = binary.LittleEndian.AppendUint64(data, uint64(7))
		b := handBuilt(map[string]any{
			"x": map[string]any{"dtype": "F64", "shape": []int{1}, "data_offsets": []int{0, 8}},
			"n": map[string]any{"dtype": "I64", "shape": []int{}, "data_offsets": []int{8, 16}},
		}, data)

		f, err := safetensors.Decode(b)

		Convey("Then both are converted to float32", func() {
			So(err, ShouldBeNil)
			So(f.Tensors["x"].Data, ShouldResemble, []float32{2.5})
			So(f.Tensors["n"].Data, ShouldResemble, []float32{7})
			So(f.Tensors["n"].DType, ShouldEqual, safetensors.DTypeI64)
		})
	})

	Convey("Given a BF16 tensor", t, func() {
		b := handBuilt(map[string]any{
			"x": map[string]any{"dtype": "BF16", "shape": []int{1}, "data_offsets": []int{0, 2}},
		}, []byte{0, 0})
		_, err := safetensors.Decode(b)
		So(errors.Is(err, safetensors.ErrDType), ShouldBeTrue)
	})
}

func TestDecode_Invalid(t *testing.T) {
	Convey("Given a truncated buffer", t, func() {
		_, err := safetensors.Decode([]byte{1, 2})
		So(errors.Is(err, safetensors.ErrHeader), ShouldBeTrue)
	})

	Convey("Given a header length past the buffer", t, func() {
		b := binary.LittleEndian.AppendUint64(nil, 1000)
		_, err := safetensors.Decode(append(b, '{', '}'))
		So(errors.Is(err, safetensors.ErrHeader), ShouldBeTrue)
	})

	Convey("Given offsets that overrun the data", t, func() {
		b := handBuilt(map[string]any{
			"x": map[string]any{"dtype": "F32", "shape": []int{4}, "data_offsets": []int{0, 16}},
		}, make([]byte, 8))
		_, err := safetensors.Decode(b)
		So(errors.Is(err, safetensors.ErrOffsets), ShouldBeTrue)
	})

	Convey("Given offsets that disagree with the shape", t, func() {
		b := handBuilt(map[string]any{
			"x": map[string]any{"dtype": "F32", "shape": []int{3}, "data_offsets": []int{0, 8}},
		}, make([]byte, 8))
		_, err := safetensors.Decode(b)
		So(errors.Is(err, safetensors.ErrOffsets), ShouldBeTrue)
	})
}

func TestWeightsFile(t *testing.T) {
	Convey("Given random model weights saved to disk", t, func() {
		arch := unet.Architecture{InChannels: 129, BaseWidth: 2}
		w, err := unet.RandomWeights(arch, 9)
		So(err, ShouldBeNil)

		path := filepath.Join(t.TempDir(), "weights.safetensors")
		So(safetensors.SaveWeights(path, w, map[string]string{"base_width": "2"}), ShouldBeNil)

		Convey("When loading them back", func() {
			loaded, meta, err := safetensors.LoadWeights(path)
			So(err, ShouldBeNil)

			Convey("Then a model can be built and the values match", func() {
				So(meta["base_width"], ShouldEqual, "2")
				So(len(loaded), ShouldEqual, len(w))
				So(loaded["decoder.up1.weight"].Data, ShouldResemble, w["decoder.up1.weight"].Data)
				_, err := unet.NewModel(arch, loaded)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the file does not exist", func() {
			_, _, err := safetensors.LoadWeights(filepath.Join(t.TempDir(), "missing"))
			So(err, ShouldNotBeNil)
		})
	})
}
