package wire

import "fmt"

// HTTPVersion enumerates the wire-legal HTTP version tags (spec §4.2).
type HTTPVersion uint8

const (
	HTTPVersion09 HTTPVersion = 9
	HTTPVersion10 HTTPVersion = 10
	HTTPVersion11 HTTPVersion = 11
	HTTPVersion20 HTTPVersion = 20
	HTTPVersion30 HTTPVersion = 30
)

func (v HTTPVersion) valid() bool {
	switch v {
	case HTTPVersion09, HTTPVersion10, HTTPVersion11, HTTPVersion20, HTTPVersion30:
		return true
	default:
		return false
	}
}

// Header is a single (name, value) pair. Both are carried as raw bytes on
// the wire since header values are not guaranteed to be valid UTF-8.
type Header struct {
	Name  []byte
	Value []byte
}

// Request is the guest-facing representation of an inbound HTTP request.
type Request struct {
	Method  string
	URI     string
	Version HTTPVersion
	Headers []Header
	Body    []byte
}

// Response is the guest-facing representation of an outbound HTTP response.
type Response struct {
	Status  uint16
	Version HTTPVersion
	Headers []Header
	Body    []byte
}

func encodeHeaders(w *Writer, headers []Header) {
	w.U32(uint32(len(headers)))
	for _, h := range headers {
		w.PutBytes(h.Name)
		w.PutBytes(h.Value)
	}
}

func decodeHeaders(r *Reader) ([]Header, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	headers := make([]Header, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		value, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		headers = append(headers, Header{Name: append([]byte(nil), name...), Value: append([]byte(nil), value...)})
	}
	return headers, nil
}

// EncodeRequest serializes a Request per the wire schema in spec.md §4.2.
func EncodeRequest(req *Request) []byte {
	w := NewWriter()
	w.PutString(req.Method)
	w.PutString(req.URI)
	w.U8(uint8(req.Version))
	encodeHeaders(w, req.Headers)
	w.PutBytes(req.Body)
	return w.Bytes()
}

// DecodeRequest parses a wire-encoded Request. An unrecognized version
// yields an Unsupported error.
func DecodeRequest(buf []byte) (*Request, error) {
	r := NewReader(buf)
	method, err := r.String()
	if err != nil {
		return nil, err
	}
	uri, err := r.String()
	if err != nil {
		return nil, err
	}
	versionByte, err := r.U8()
	if err != nil {
		return nil, err
	}
	version := HTTPVersion(versionByte)
	if !version.valid() {
		return nil, fmt.Errorf("wire: unsupported http version %d: %w", versionByte, ErrUnsupported)
	}
	headers, err := decodeHeaders(r)
	if err != nil {
		return nil, err
	}
	body, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  method,
		URI:     uri,
		Version: version,
		Headers: headers,
		Body:    append([]byte(nil), body...),
	}, nil
}

// EncodeResponse serializes a Response per the wire schema in spec.md §4.2.
func EncodeResponse(resp *Response) []byte {
	w := NewWriter()
	w.U16(resp.Status)
	w.U8(uint8(resp.Version))
	encodeHeaders(w, resp.Headers)
	w.PutBytes(resp.Body)
	return w.Bytes()
}

// DecodeResponse parses a wire-encoded Response.
func DecodeResponse(buf []byte) (*Response, error) {
	r := NewReader(buf)
	status, err := r.U16()
	if err != nil {
		return nil, err
	}
	versionByte, err := r.U8()
	if err != nil {
		return nil, err
	}
	version := HTTPVersion(versionByte)
	if !version.valid() {
		return nil, fmt.Errorf("wire: unsupported http version %d: %w", versionByte, ErrUnsupported)
	}
	headers, err := decodeHeaders(r)
	if err != nil {
		return nil, err
	}
	body, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:  status,
		Version: version,
		Headers: headers,
		Body:    append([]byte(nil), body...),
	}, nil
}
