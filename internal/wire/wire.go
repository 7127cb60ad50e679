// Package wire implements the length-prefixed binary encoding used to move
// structured values across the guest/host boundary: HTTP requests and
// responses, database rows, outbound routes, and management update queries.
//
// Every integer is little-endian. Every variable-length field (strings,
// byte blobs, vectors) is preceded by a uint32 length. There is no other
// framing; decode errors are reported as WireFormat errors rather than
// panics.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnexpectedEOF is returned when a buffer runs out mid-field.
var ErrUnexpectedEOF = errors.New("wire: unexpected end of buffer")

// Reader walks a byte slice left to right, consuming fixed and
// length-prefixed fields. It never allocates beyond what's returned to the
// caller.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.remaining() < n {
		return ErrUnexpectedEOF
	}
	return nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	if err != nil {
		return 0, err
	}
	return f64FromBits(v), nil
}

// Bytes reads a uint32-length-prefixed byte slice. The returned slice
// aliases the reader's underlying buffer; callers that retain it past the
// buffer's lifetime must copy.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// String reads a length-prefixed UTF-8 string, validating encoding.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8Valid(b) {
		return "", fmt.Errorf("wire: invalid utf-8 string")
	}
	return string(b), nil
}

// Bool reads a single byte, 0 = false, anything else = true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Done reports whether every byte of the buffer has been consumed.
func (r *Reader) Done() bool { return r.remaining() == 0 }

// Writer accumulates an encoded wire value.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) U16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) U32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) U64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) F64(v float64) { w.U64(f64Bits(v)) }

func (w *Writer) PutBytes(b []byte) {
	w.U32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

