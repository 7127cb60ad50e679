package wire

import "errors"

// ErrUnsupported marks an HTTP version byte outside the wire-legal set.
var ErrUnsupported = errors.New("wire: unsupported value")

// InvokeErrorKind enumerates the result's error variants for a host import
// invocation (spec.md §4.2/§4.7).
type InvokeErrorKind uint8

const (
	InvokeErrEmptyContext InvokeErrorKind = iota
	InvokeErrDeserialize
	InvokeErrForbiddenMethod
	InvokeErrForbiddenHost
	InvokeErrFailRequest
	InvokeErrResponseBuild
)

// InvokeError is the structured error a host import returns to its guest
// caller.
type InvokeError struct {
	Kind      InvokeErrorKind
	Method    string // InvokeErrForbiddenMethod
	Host      string // InvokeErrForbiddenHost
	Status    int32  // InvokeErrFailRequest; 0 means "no status received"
	HasStatus bool
	Message   string
}

func (e *InvokeError) Error() string {
	switch e.Kind {
	case InvokeErrEmptyContext:
		return "empty context"
	case InvokeErrDeserialize:
		return "deserialize failed: " + e.Message
	case InvokeErrForbiddenMethod:
		return "forbidden method: " + e.Method
	case InvokeErrForbiddenHost:
		return "forbidden host: " + e.Host
	case InvokeErrFailRequest:
		if e.HasStatus {
			return "request failed with status"
		}
		return "request failed: " + e.Message
	case InvokeErrResponseBuild:
		return "response build failed: " + e.Message
	default:
		return "invoke error"
	}
}

// EncodeInvokeResult serializes Result<Response, InvokeError> as a
// discriminant byte (0 = Ok) followed by the payload.
func EncodeInvokeResult(resp *Response, invokeErr *InvokeError) []byte {
	w := NewWriter()
	if invokeErr == nil {
		w.U8(0)
		w.PutBytes(EncodeResponse(resp))
		return w.Bytes()
	}
	w.U8(1)
	encodeInvokeError(w, invokeErr)
	return w.Bytes()
}

// DecodeInvokeResult parses a wire-encoded Result<Response, InvokeError>.
func DecodeInvokeResult(buf []byte) (*Response, *InvokeError, error) {
	r := NewReader(buf)
	tag, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	if tag == 0 {
		raw, err := r.Bytes()
		if err != nil {
			return nil, nil, err
		}
		resp, err := DecodeResponse(raw)
		if err != nil {
			return nil, nil, err
		}
		return resp, nil, nil
	}
	invokeErr, err := decodeInvokeError(r)
	if err != nil {
		return nil, nil, err
	}
	return nil, invokeErr, nil
}

func encodeInvokeError(w *Writer, e *InvokeError) {
	w.U8(uint8(e.Kind))
	switch e.Kind {
	case InvokeErrEmptyContext:
	case InvokeErrDeserialize, InvokeErrResponseBuild:
		w.PutString(e.Message)
	case InvokeErrForbiddenMethod:
		w.PutString(e.Method)
	case InvokeErrForbiddenHost:
		w.PutString(e.Host)
	case InvokeErrFailRequest:
		w.Bool(e.HasStatus)
		if e.HasStatus {
			w.U32(uint32(e.Status))
		}
		w.PutString(e.Message)
	}
}

func decodeInvokeError(r *Reader) (*InvokeError, error) {
	kindByte, err := r.U8()
	if err != nil {
		return nil, err
	}
	e := &InvokeError{Kind: InvokeErrorKind(kindByte)}
	switch e.Kind {
	case InvokeErrEmptyContext:
	case InvokeErrDeserialize, InvokeErrResponseBuild:
		msg, err := r.String()
		if err != nil {
			return nil, err
		}
		e.Message = msg
	case InvokeErrForbiddenMethod:
		m, err := r.String()
		if err != nil {
			return nil, err
		}
		e.Method = m
	case InvokeErrForbiddenHost:
		h, err := r.String()
		if err != nil {
			return nil, err
		}
		e.Host = h
	case InvokeErrFailRequest:
		has, err := r.Bool()
		if err != nil {
			return nil, err
		}
		e.HasStatus = has
		if has {
			status, err := r.U32()
			if err != nil {
				return nil, err
			}
			e.Status = int32(status)
		}
		msg, err := r.String()
		if err != nil {
			return nil, err
		}
		e.Message = msg
	}
	return e, nil
}

// EncodeResultUnit serializes Result<(), string> — the wire shape of the
// guest's init() return value.
func EncodeResultUnit(errMsg string, isErr bool) []byte {
	w := NewWriter()
	w.Bool(isErr)
	if isErr {
		w.PutString(errMsg)
	}
	return w.Bytes()
}

// DecodeResultUnit parses Result<(), string>. ok is false iff the guest
// signalled an error, in which case errMsg carries the guest-supplied
// message.
func DecodeResultUnit(buf []byte) (ok bool, errMsg string, err error) {
	r := NewReader(buf)
	isErr, err := r.Bool()
	if err != nil {
		return false, "", err
	}
	if !isErr {
		return true, "", nil
	}
	msg, err := r.String()
	if err != nil {
		return false, "", err
	}
	return false, msg, nil
}

// EncodeExecuteResult serializes Result<i64, string> — the wire shape of
// db_execute's affected-row count.
func EncodeExecuteResult(affected int64, errMsg string, isErr bool) []byte {
	w := NewWriter()
	w.Bool(isErr)
	if isErr {
		w.PutString(errMsg)
		return w.Bytes()
	}
	w.I64(affected)
	return w.Bytes()
}

// DecodeExecuteResult parses Result<i64, string>.
func DecodeExecuteResult(buf []byte) (affected int64, errMsg string, isErr bool, err error) {
	r := NewReader(buf)
	isErr, err = r.Bool()
	if err != nil {
		return 0, "", false, err
	}
	if isErr {
		msg, err := r.String()
		if err != nil {
			return 0, "", false, err
		}
		return 0, msg, true, nil
	}
	n, err := r.I64()
	if err != nil {
		return 0, "", false, err
	}
	return n, "", false, nil
}

// EncodeQueryRowResult serializes Result<Option<Row>, string>.
func EncodeQueryRowResult(row *Row, errMsg string, isErr bool) []byte {
	w := NewWriter()
	w.Bool(isErr)
	if isErr {
		w.PutString(errMsg)
		return w.Bytes()
	}
	w.Bool(row != nil)
	if row != nil {
		encodeRowInto(w, *row)
	}
	return w.Bytes()
}

// DecodeQueryRowResult parses Result<Option<Row>, string>.
func DecodeQueryRowResult(buf []byte) (row *Row, errMsg string, isErr bool, err error) {
	r := NewReader(buf)
	isErr, err = r.Bool()
	if err != nil {
		return nil, "", false, err
	}
	if isErr {
		msg, err := r.String()
		if err != nil {
			return nil, "", false, err
		}
		return nil, msg, true, nil
	}
	hasRow, err := r.Bool()
	if err != nil {
		return nil, "", false, err
	}
	if !hasRow {
		return nil, "", false, nil
	}
	decoded, err := decodeRowFrom(r)
	if err != nil {
		return nil, "", false, err
	}
	return &decoded, "", false, nil
}

// EncodeQueryResult serializes Result<[]Row, string>.
func EncodeQueryResult(rows []Row, errMsg string, isErr bool) []byte {
	w := NewWriter()
	w.Bool(isErr)
	if isErr {
		w.PutString(errMsg)
		return w.Bytes()
	}
	w.U32(uint32(len(rows)))
	for _, row := range rows {
		encodeRowInto(w, row)
	}
	return w.Bytes()
}

// DecodeQueryResult parses Result<[]Row, string>.
func DecodeQueryResult(buf []byte) (rows []Row, errMsg string, isErr bool, err error) {
	r := NewReader(buf)
	isErr, err = r.Bool()
	if err != nil {
		return nil, "", false, err
	}
	if isErr {
		msg, err := r.String()
		if err != nil {
			return nil, "", false, err
		}
		return nil, msg, true, nil
	}
	n, err := r.U32()
	if err != nil {
		return nil, "", false, err
	}
	rows = make([]Row, 0, n)
	for i := uint32(0); i < n; i++ {
		row, err := decodeRowFrom(r)
		if err != nil {
			return nil, "", false, err
		}
		rows = append(rows, row)
	}
	return rows, "", false, nil
}
