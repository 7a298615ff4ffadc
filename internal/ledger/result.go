package ledger

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/opentdf/ctivault/pkg/cti"
)

// Encoding is the wire shape of a query result.
type Encoding int

const (
	// EncodingString carries the payload as a UTF-8 JSON string.
	EncodingString Encoding = iota + 1
	// EncodingByteMap carries the payload as an object whose keys are the
	// decimal indexes 0..n-1 and whose values are byte values.
	EncodingByteMap
)

func (e Encoding) String() string {
	switch e {
	case EncodingString:
		return "string"
	case EncodingByteMap:
		return "bytemap"
	default:
		return "unknown"
	}
}

// ParseEncoding reads the configuration spelling of an encoding. An empty
// value selects EncodingString.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "string":
		return EncodingString, nil
	case "bytemap":
		return EncodingByteMap, nil
	default:
		return 0, cti.Errorf(cti.KindInvalidRecord, "parse encoding", "unknown result encoding %q", s)
	}
}

// Result is a ledger query result in one of its two wire encodings. Bytes
// is the single place both encodings are turned into a payload.
type Result struct {
	Encoding Encoding
	text     string
	byteMap  map[string]json.RawMessage
	payload  []byte
}

// NewResult wraps payload for sending in the given encoding.
func NewResult(payload []byte, enc Encoding) *Result {
	return &Result{Encoding: enc, payload: append([]byte(nil), payload...)}
}

// ParseResult classifies a raw wire value without interpreting it.
func ParseResult(raw []byte) (*Result, error) {
	const op = "parse result"
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, cti.Errorf(cti.KindResponseFormat, op, "empty result")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, cti.E(cti.KindResponseFormat, op, err)
		}
		return &Result{Encoding: EncodingString, text: s}, nil
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, cti.E(cti.KindResponseFormat, op, err)
		}
		return &Result{Encoding: EncodingByteMap, byteMap: m}, nil
	default:
		return nil, cti.Errorf(cti.KindResponseFormat, op, "result is neither a string nor a byte map")
	}
}

// Normalize decodes a raw wire value to its payload bytes.
func Normalize(raw []byte) ([]byte, error) {
	r, err := ParseResult(raw)
	if err != nil {
		return nil, err
	}
	return r.Bytes()
}

// Bytes returns the payload regardless of how it arrived.
func (r *Result) Bytes() ([]byte, error) {
	if r.payload != nil {
		return append([]byte(nil), r.payload...), nil
	}
	switch r.Encoding {
	case EncodingString:
		return []byte(r.text), nil
	case EncodingByteMap:
		return decodeByteMap(r.byteMap)
	default:
		return nil, cti.Errorf(cti.KindResponseFormat, "normalize result", "unknown encoding %d", r.Encoding)
	}
}

// MarshalJSON renders the payload in the result's encoding.
func (r *Result) MarshalJSON() ([]byte, error) {
	payload, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	if r.Encoding != EncodingByteMap {
		return json.Marshal(string(payload))
	}
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, b := range payload {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`":`)
		buf.WriteString(strconv.Itoa(int(b)))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeByteMap(m map[string]json.RawMessage) ([]byte, error) {
	const op = "normalize result"
	out := make([]byte, len(m))
	for i := range out {
		raw, ok := m[strconv.Itoa(i)]
		if !ok {
			return nil, cti.Errorf(cti.KindResponseFormat, op, "byte map is missing index %d", i)
		}
		v, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
		if err != nil || v < 0 || v > 255 {
			return nil, cti.Errorf(cti.KindResponseFormat, op, "byte map index %d holds %s", i, string(raw))
		}
		out[i] = byte(v)
	}
	return out, nil
}
