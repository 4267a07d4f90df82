package matfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// WriteOption configures encoding.
type WriteOption func(*encoder)

// WithCompression wraps every array in a zlib miCOMPRESSED element.
func WithCompression() WriteOption {
	return func(e *encoder) {
		e.compress = true
	}
}

// WithByteOrder selects the file byte order. Little endian is the default.
func WithByteOrder(order binary.ByteOrder) WriteOption {
	return func(e *encoder) {
		if order != nil {
			e.order = order
		}
	}
}

// WithDescription overrides the header text.
func WithDescription(text string) WriteOption {
	return func(e *encoder) {
		e.description = text
	}
}

type encoder struct {
	order       binary.ByteOrder
	compress    bool
	description string
}

// Write encodes vars as double arrays into a Level-5 MAT file.
func Write(w io.Writer, vars []*Variable, opts ...WriteOption) error {
	b, err := Encode(vars, opts...)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write mat: %w", err)
	}
	return nil
}

// Encode returns the file bytes for vars.
func Encode(vars []*Variable, opts ...WriteOption) ([]byte, error) {
	e := &encoder{
		order:       binary.LittleEndian,
		description: "MATLAB 5.0 MAT-file, Platform: GO, Created on: " + time.Now().UTC().Format(time.ANSIC),
	}
	for _, opt := range opts {
		opt(e)
	}

	var buf bytes.Buffer
	e.header(&buf)
	for _, v := range vars {
		if err := v.validate(); err != nil {
			return nil, err
		}
		el := e.matrix(v)
		if !e.compress {
			buf.Write(el)
			continue
		}
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(el); err != nil {
			return nil, fmt.Errorf("compress %s: %w", v.Name, err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress %s: %w", v.Name, err)
		}
		e.tag(&buf, miCOMPRESSED, z.Len())
		buf.Write(z.Bytes())
	}
	return buf.Bytes(), nil
}

func (e *encoder) header(buf *bytes.Buffer) {
	h := make([]byte, headerLen)
	text := e.description
	if len(text) > headerTextLen {
		text = text[:headerTextLen]
	}
	copy(h, text)
	for i := len(text); i < headerTextLen; i++ {
		h[i] = ' '
	}
	e.order.PutUint16(h[124:126], version5)
	e.order.PutUint16(h[126:128], uint16('M')<<8|uint16('I'))
	buf.Write(h)
}

func (e *encoder) matrix(v *Variable) []byte {
	var body bytes.Buffer

	flags := make([]byte, 8)
	e.order.PutUint32(flags, uint32(ClassDouble))
	e.element(&body, miUINT32, flags)

	dims := make([]byte, 4*len(v.Dims))
	for i, d := range v.Dims {
		e.order.PutUint32(dims[4*i:], uint32(int32(d)))
	}
	e.element(&body, miINT32, dims)

	e.element(&body, miINT8, []byte(v.Name))

	re := make([]byte, 8*len(v.Data))
	for i, x := range v.Data {
		e.order.PutUint64(re[8*i:], math.Float64bits(x))
	}
	e.element(&body, miDOUBLE, re)

	var out bytes.Buffer
	e.tag(&out, miMATRIX, body.Len())
	out.Write(body.Bytes())
	return out.Bytes()
}

// element writes data with its tag, using the small form for 1 to 4 bytes.
func (e *encoder) element(buf *bytes.Buffer, typ uint32, data []byte) {
	if n := len(data); n > 0 && n <= 4 {
		word := make([]byte, 8)
		e.order.PutUint32(word, uint32(n)<<16|typ)
		copy(word[4:], data)
		buf.Write(word)
		return
	}
	e.tag(buf, typ, len(data))
	buf.Write(data)
	if p := pad8(len(data)) - len(data); p > 0 {
		buf.Write(make([]byte, p))
	}
}

func (e *encoder) tag(buf *bytes.Buffer, typ uint32, n int) {
	t := make([]byte, tagLen)
	e.order.PutUint32(t[0:4], typ)
	e.order.PutUint32(t[4:8], uint32(n))
	buf.Write(t)
}
