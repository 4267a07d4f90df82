package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// DefaultMaxInflate caps the decompressed bytes accepted from one file.
const DefaultMaxInflate = 1 << 30

// File is a decoded MAT file.
type File struct {
	Description string
	ByteOrder   binary.ByteOrder

	vars    map[string]*Variable
	skipped map[string]string
}

// Names returns the numeric variables in the file, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.vars))
	for n := range f.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Variable returns the named numeric array.
func (f *File) Variable(name string) (*Variable, error) {
	if v, ok := f.vars[name]; ok {
		return v, nil
	}
	if kind, ok := f.skipped[name]; ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedClass, name, kind)
	}
	return nil, fmt.Errorf("%w: %q", ErrMissingVariable, name)
}

// ReadOption configures decoding.
type ReadOption func(*decoder)

// WithMaxInflate sets how many decompressed bytes a file may expand to,
// summed over all compressed elements.
func WithMaxInflate(n int64) ReadOption {
	return func(d *decoder) {
		if n > 0 {
			d.maxInflate = n
		}
	}
}

type decoder struct {
	order      binary.ByteOrder
	maxInflate int64
	inflated   int64
}

// Read decodes a whole MAT file from r.
func Read(r io.Reader, opts ...ReadOption) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mat: %w", err)
	}
	return Decode(b, opts...)
}

// ReadVariable decodes r and returns a single variable.
func ReadVariable(r io.Reader, name string, opts ...ReadOption) (*Variable, error) {
	f, err := Read(r, opts...)
	if err != nil {
		return nil, err
	}
	return f.Variable(name)
}

// Decode parses a Level-5 MAT file held in memory.
func Decode(b []byte, opts ...ReadOption) (*File, error) {
	d := &decoder{maxInflate: DefaultMaxInflate}
	for _, opt := range opts {
		opt(d)
	}

	if len(b) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(b))
	}
	switch string(b[126:128]) {
	case "IM":
		d.order = binary.LittleEndian
	case "MI":
		d.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: no endian indicator", ErrInvalidHeader)
	}
	switch v := d.order.Uint16(b[124:126]); v {
	case version5:
	case version73:
		return nil, fmt.Errorf("%w: v7.3 (HDF5) files are not supported", ErrUnsupportedVersion)
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedVersion, v)
	}

	f := &File{
		Description: string(bytes.TrimRight(b[:headerTextLen], " \x00")),
		ByteOrder:   d.order,
		vars:        make(map[string]*Variable),
		skipped:     make(map[string]string),
	}
	if err := d.elements(f, b[headerLen:]); err != nil {
		return nil, err
	}
	return f, nil
}

func (d *decoder) elements(f *File, b []byte) error {
	for len(b) > 0 {
		typ, data, rest, err := d.next(b)
		if err != nil {
			return err
		}
		switch typ {
		case miCOMPRESSED:
			inflated, err := d.inflate(data)
			if err != nil {
				return err
			}
			if err := d.elements(f, inflated); err != nil {
				return err
			}
		case miMATRIX:
			if err := d.matrix(f, data); err != nil {
				return err
			}
		}
		b = rest
	}
	return nil
}

// next splits the leading data element off b. Small elements pack the size
// into the upper half of the type word and occupy exactly eight bytes.
func (d *decoder) next(b []byte) (typ uint32, data, rest []byte, err error) {
	if len(b) < tagLen {
		return 0, nil, nil, fmt.Errorf("%w: truncated tag", ErrCorrupt)
	}
	first := d.order.Uint32(b[0:4])
	if size := first >> 16; size != 0 {
		if size > 4 {
			return 0, nil, nil, fmt.Errorf("%w: small element of %d bytes", ErrCorrupt, size)
		}
		return first & 0xffff, b[4 : 4+size], b[tagLen:], nil
	}

	n := uint64(d.order.Uint32(b[4:8]))
	if n > uint64(len(b)-tagLen) {
		return 0, nil, nil, fmt.Errorf("%w: element of %d bytes overruns %d", ErrCorrupt, n, len(b)-tagLen)
	}
	end := tagLen + int(n)
	data = b[tagLen:end]
	if first != miCOMPRESSED {
		end = min(tagLen+pad8(int(n)), len(b))
	}
	return first, data, b[end:], nil
}

func (d *decoder) inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	remaining := d.maxInflate - d.inflated
	out, err := io.ReadAll(io.LimitReader(zr, remaining+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrCorrupt, err)
	}
	if int64(len(out)) > remaining {
		return nil, fmt.Errorf("%w: more than %d decompressed bytes", ErrTooLarge, d.maxInflate)
	}
	d.inflated += int64(len(out))
	return out, nil
}

func (d *decoder) matrix(f *File, b []byte) error {
	if len(b) == 0 {
		return nil
	}

	typ, flagsRaw, b, err := d.next(b)
	if err != nil {
		return err
	}
	if typ != miUINT32 || len(flagsRaw) < 8 {
		return fmt.Errorf("%w: array flags", ErrCorrupt)
	}
	flags := d.order.Uint32(flagsRaw[0:4])
	class := Class(flags & 0xff)

	typ, dimsRaw, b, err := d.next(b)
	if err != nil {
		return err
	}
	if typ != miINT32 || len(dimsRaw)%4 != 0 || len(dimsRaw) < 8 {
		return fmt.Errorf("%w: dimensions", ErrCorrupt)
	}
	dims := make([]int, len(dimsRaw)/4)
	for i := range dims {
		v := int32(d.order.Uint32(dimsRaw[4*i:]))
		if v < 0 {
			return fmt.Errorf("%w: negative dimension", ErrCorrupt)
		}
		dims[i] = int(v)
	}

	typ, nameRaw, b, err := d.next(b)
	if err != nil {
		return err
	}
	if typ != miINT8 && typ != miUTF8 {
		return fmt.Errorf("%w: array name", ErrCorrupt)
	}
	name := string(nameRaw)

	if !class.numeric() || flags&flagComplex != 0 {
		kind := class.String()
		if flags&flagComplex != 0 {
			kind = "complex " + kind
		}
		f.skipped[name] = kind
		delete(f.vars, name)
		return nil
	}

	typ, realRaw, _, err := d.next(b)
	if err != nil {
		return err
	}
	data, err := d.numbers(typ, realRaw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	v := &Variable{Name: name, Class: class, Dims: dims, Logical: flags&flagLogical != 0, Data: data}
	if len(data) != v.Len() {
		return fmt.Errorf("%w: %s has dims %v but %d values", ErrCorrupt, name, dims, len(data))
	}
	f.vars[name] = v
	delete(f.skipped, name)
	return nil
}

// numbers converts raw element bytes of any numeric storage type to float64.
func (d *decoder) numbers(typ uint32, raw []byte) ([]float64, error) {
	size := elementSize(typ)
	if size == 0 {
		return nil, fmt.Errorf("%w: storage type %d", ErrCorrupt, typ)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrCorrupt, len(raw), size)
	}
	out := make([]float64, len(raw)/size)
	o := d.order
	for i := range out {
		p := raw[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(p[0]))
		case miUINT8:
			out[i] = float64(p[0])
		case miINT16:
			out[i] = float64(int16(o.Uint16(p)))
		case miUINT16:
			out[i] = float64(o.Uint16(p))
		case miINT32:
			out[i] = float64(int32(o.Uint32(p)))
		case miUINT32:
			out[i] = float64(o.Uint32(p))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(o.Uint32(p)))
		case miDOUBLE:
			out[i] = math.Float64frombits(o.Uint64(p))
		case miINT64:
			out[i] = float64(int64(o.Uint64(p)))
		case miUINT64:
			out[i] = float64(o.Uint64(p))
		}
	}
	return out, nil
}
