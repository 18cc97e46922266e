package reference

import (
	"encoding/binary"
	"fmt"

	"github.com/kailas-cloud/indexstore/internal/db"
)

// Table layout:
//
//	references_forward  tuple(from, view, to) -> empty
//	references_reverse  tuple(to, from)       -> uvarint number of views
//	references_count    tuple(to)             -> uint64 distinct referrers
//	references_by_view  tuple(view, from)     -> empty

func forwardKey(from, view, to string) []byte {
	return db.NewKey().Str(from).Str(view).Str(to).Bytes()
}

func forwardPrefix(from string) []byte {
	return db.NewKey().Str(from).Bytes()
}

func forwardViewPrefix(from, view string) []byte {
	return db.NewKey().Str(from).Str(view).Bytes()
}

func reverseKey(to, from string) []byte {
	return db.NewKey().Str(to).Str(from).Bytes()
}

func reversePrefix(to string) []byte {
	return db.NewKey().Str(to).Bytes()
}

func countKey(to string) []byte {
	return db.NewKey().Str(to).Bytes()
}

func byViewKey(view, from string) []byte {
	return db.NewKey().Str(view).Str(from).Bytes()
}

func byViewPrefix(view string) []byte {
	return db.NewKey().Str(view).Bytes()
}

// decodeForward splits a forward key into its view and to components.
func decodeForward(k []byte) (view, to string, err error) {
	d := db.DecodeKey(k)
	if _, err = d.Str(); err != nil {
		return "", "", err
	}
	if view, err = d.Str(); err != nil {
		return "", "", err
	}
	if to, err = d.Str(); err != nil {
		return "", "", err
	}
	return view, to, nil
}

// decodeSecond returns the second string component of a two-part key.
func decodeSecond(k []byte) (string, error) {
	d := db.DecodeKey(k)
	if _, err := d.Str(); err != nil {
		return "", err
	}
	return d.Str()
}

func encodeViewCount(n uint64) []byte {
	return binary.AppendUvarint(nil, n)
}

func decodeViewCount(b []byte) (uint64, error) {
	n, size := binary.Uvarint(b)
	if size <= 0 {
		return 0, fmt.Errorf("corrupt reverse view count")
	}
	return n, nil
}

func encodeCount(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func decodeCount(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("corrupt reference count")
	}
	return binary.BigEndian.Uint64(b), nil
}
