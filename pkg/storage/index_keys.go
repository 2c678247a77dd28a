package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Index values are encoded so that byte order equals value order within a
// type, and types sort bool < number < string. All numeric kinds share one
// float64 encoding, so 25 and 25.0 are the same index value.
const (
	tagBool   = byte(0x10)
	tagNumber = byte(0x20)
	tagString = byte(0x30)
)

// string escaping: 0x00 -> 0x00 0xFF, terminator 0x00 0x01
const (
	strEscape     = byte(0x00)
	strEscapedNul = byte(0xFF)
	strTerminator = byte(0x01)
)

// NumericValue converts any Go numeric kind to float64.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// IsIndexable reports whether v can be stored in a secondary index.
func IsIndexable(v any) bool {
	switch v.(type) {
	case bool, string:
		return true
	}
	f, ok := NumericValue(v)
	return ok && !math.IsNaN(f)
}

// EncodeIndexValue returns the order-preserving encoding of v.
func EncodeIndexValue(v any) ([]byte, error) {
	return appendIndexValue(nil, v)
}

func appendIndexValue(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case bool:
		b := byte(0)
		if x {
			b = 1
		}
		return append(dst, tagBool, b), nil
	case string:
		dst = append(dst, tagString)
		dst = appendEscaped(dst, x)
		return append(dst, strEscape, strTerminator), nil
	}
	f, ok := NumericValue(v)
	if !ok || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedIndexValue, v)
	}
	return appendNumber(append(dst, tagNumber), f), nil
}

func appendNumber(dst []byte, f float64) []byte {
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	bits := math.Float64bits(f)
	if bits>>63 == 1 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(dst, bits)
}

func appendEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == strEscape {
			dst = append(dst, strEscape, strEscapedNul)
			continue
		}
		dst = append(dst, s[i])
	}
	return dst
}

// EncodeStringPrefix returns the key fragment shared by every encoded string
// value that starts with prefix.
func EncodeStringPrefix(prefix string) []byte {
	return appendEscaped([]byte{tagString}, prefix)
}

// NumberSection and StringSection are the first key bytes of every encoded
// number and string value respectively.
func NumberSection() []byte { return []byte{tagNumber} }
func StringSection() []byte { return []byte{tagString} }

// decodeIndexValue decodes one value from the front of b and returns the remainder.
func decodeIndexValue(b []byte) (any, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("%w: empty index value", ErrInvalidData)
	}
	switch b[0] {
	case tagBool:
		if len(b) < 2 {
			return nil, nil, fmt.Errorf("%w: short bool", ErrInvalidData)
		}
		return b[1] == 1, b[2:], nil
	case tagNumber:
		if len(b) < 9 {
			return nil, nil, fmt.Errorf("%w: short number", ErrInvalidData)
		}
		bits := binary.BigEndian.Uint64(b[1:9])
		if bits>>63 == 1 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), b[9:], nil
	case tagString:
		out := make([]byte, 0, len(b))
		for i := 1; i < len(b); i++ {
			if b[i] != strEscape {
				out = append(out, b[i])
				continue
			}
			if i+1 >= len(b) {
				break
			}
			switch b[i+1] {
			case strEscapedNul:
				out = append(out, 0)
				i++
			case strTerminator:
				return string(out), b[i+2:], nil
			default:
				return nil, nil, fmt.Errorf("%w: bad string escape", ErrInvalidData)
			}
		}
		return nil, nil, fmt.Errorf("%w: unterminated string", ErrInvalidData)
	default:
		return nil, nil, fmt.Errorf("%w: unknown value tag 0x%02x", ErrInvalidData, b[0])
	}
}
