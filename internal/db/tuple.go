package db

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tuple component tags.
const (
	tagString byte = 0x02
	tagUint   byte = 0x15
)

// Bytes inside a string component that must be escaped.
const (
	strEnd    byte = 0x00
	strEscape byte = 0x01
)

// ErrMalformedKey is returned when a tuple key cannot be decoded.
var ErrMalformedKey = errors.New("db: malformed tuple key")

// Key is an order-preserving, prefix-free tuple encoding. The encoding of a
// tuple is always a byte prefix of the encoding of any longer tuple that
// starts with the same components, and never a prefix of anything else, so a
// partial tuple can be used as a scan prefix.
//
// Strings are tagged and terminated by 0x00; 0x00 and 0x01 inside the string
// are escaped as 0x01 0x01 and 0x01 0x02. Integers are tagged and stored as
// fixed-width big-endian.
type Key []byte

// NewKey starts an empty tuple.
func NewKey() Key {
	return make(Key, 0, 32)
}

// Str appends a string component.
func (k Key) Str(s string) Key {
	k = append(k, tagString)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case strEnd:
			k = append(k, strEscape, 0x01)
		case strEscape:
			k = append(k, strEscape, 0x02)
		default:
			k = append(k, c)
		}
	}
	return append(k, strEnd)
}

// U64 appends an unsigned integer component.
func (k Key) U64(v uint64) Key {
	k = append(k, tagUint)
	return binary.BigEndian.AppendUint64(k, v)
}

// Bytes returns the encoded key.
func (k Key) Bytes() []byte { return []byte(k) }

// KeyDecoder reads components back out of an encoded tuple in order.
type KeyDecoder struct {
	b []byte
}

// DecodeKey starts decoding b.
func DecodeKey(b []byte) *KeyDecoder {
	return &KeyDecoder{b: b}
}

// Done reports whether every component has been consumed.
func (d *KeyDecoder) Done() bool { return len(d.b) == 0 }

// Str reads the next component as a string.
func (d *KeyDecoder) Str() (string, error) {
	if len(d.b) == 0 || d.b[0] != tagString {
		return "", fmt.Errorf("%w: expected string component", ErrMalformedKey)
	}
	out := make([]byte, 0, len(d.b))
	for i := 1; i < len(d.b); i++ {
		switch c := d.b[i]; c {
		case strEnd:
			d.b = d.b[i+1:]
			return string(out), nil
		case strEscape:
			if i+1 >= len(d.b) {
				return "", fmt.Errorf("%w: truncated escape", ErrMalformedKey)
			}
			i++
			switch d.b[i] {
			case 0x01:
				out = append(out, strEnd)
			case 0x02:
				out = append(out, strEscape)
			default:
				return "", fmt.Errorf("%w: bad escape 0x%02x", ErrMalformedKey, d.b[i])
			}
		default:
			out = append(out, c)
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrMalformedKey)
}

// U64 reads the next component as an unsigned integer.
func (d *KeyDecoder) U64() (uint64, error) {
	if len(d.b) < 9 || d.b[0] != tagUint {
		return 0, fmt.Errorf("%w: expected uint component", ErrMalformedKey)
	}
	v := binary.BigEndian.Uint64(d.b[1:9])
	d.b = d.b[9:]
	return v, nil
}
