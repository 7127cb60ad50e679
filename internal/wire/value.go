package wire

import "fmt"

// ValueKind tags the variant carried by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueInteger
	ValueReal
	ValueText
	ValueBlob
)

// Value is a single SQLite-compatible cell, per spec.md §3/§4.7.
type Value struct {
	Kind    ValueKind
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

func NullValue() Value           { return Value{Kind: ValueNull} }
func IntegerValue(v int64) Value { return Value{Kind: ValueInteger, Integer: v} }
func RealValue(v float64) Value  { return Value{Kind: ValueReal, Real: v} }
func TextValue(v string) Value   { return Value{Kind: ValueText, Text: v} }
func BlobValue(v []byte) Value   { return Value{Kind: ValueBlob, Blob: v} }

// Row is an ordered sequence of Values, one per selected column.
type Row struct {
	Values []Value
}

func encodeValue(w *Writer, v Value) {
	w.U8(uint8(v.Kind))
	switch v.Kind {
	case ValueNull:
	case ValueInteger:
		w.I64(v.Integer)
	case ValueReal:
		w.F64(v.Real)
	case ValueText:
		w.PutString(v.Text)
	case ValueBlob:
		w.PutBytes(v.Blob)
	}
}

func decodeValue(r *Reader) (Value, error) {
	kindByte, err := r.U8()
	if err != nil {
		return Value{}, err
	}
	kind := ValueKind(kindByte)
	switch kind {
	case ValueNull:
		return NullValue(), nil
	case ValueInteger:
		n, err := r.I64()
		if err != nil {
			return Value{}, err
		}
		return IntegerValue(n), nil
	case ValueReal:
		f, err := r.F64()
		if err != nil {
			return Value{}, err
		}
		return RealValue(f), nil
	case ValueText:
		s, err := r.String()
		if err != nil {
			return Value{}, err
		}
		return TextValue(s), nil
	case ValueBlob:
		b, err := r.Bytes()
		if err != nil {
			return Value{}, err
		}
		return BlobValue(append([]byte(nil), b...)), nil
	default:
		return Value{}, fmt.Errorf("wire: unknown value kind %d", kindByte)
	}
}

// EncodeRow serializes a Row.
func EncodeRow(row Row) []byte {
	w := NewWriter()
	encodeRowInto(w, row)
	return w.Bytes()
}

func encodeRowInto(w *Writer, row Row) {
	w.U32(uint32(len(row.Values)))
	for _, v := range row.Values {
		encodeValue(w, v)
	}
}

// DecodeRow parses a wire-encoded Row.
func DecodeRow(buf []byte) (Row, error) {
	r := NewReader(buf)
	return decodeRowFrom(r)
}

func decodeRowFrom(r *Reader) (Row, error) {
	n, err := r.U32()
	if err != nil {
		return Row{}, err
	}
	values := make([]Value, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return Row{}, err
		}
		values = append(values, v)
	}
	return Row{Values: values}, nil
}

// EncodeRows serializes a slice of Rows (the guest-visible result of
// db_query).
func EncodeRows(rows []Row) []byte {
	w := NewWriter()
	w.U32(uint32(len(rows)))
	for _, row := range rows {
		encodeRowInto(w, row)
	}
	return w.Bytes()
}

// DecodeRows parses a wire-encoded []Row.
func DecodeRows(buf []byte) ([]Row, error) {
	r := NewReader(buf)
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, n)
	for i := uint32(0); i < n; i++ {
		row, err := decodeRowFrom(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
