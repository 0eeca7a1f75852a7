// Package codec encodes and decodes the primitive wire field types: big-endian
// uint32, length-prefixed strings, and length-prefixed blobs.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a buffer does not contain enough bytes to
// decode the requested value. Callers should use errors.Is(err, ErrShortBuffer).
var ErrShortBuffer = errors.New("codec: short buffer")

// Uint32Size is the encoded size, in bytes, of a uint32 field.
const Uint32Size = 4

// AppendUint32 appends the big-endian encoding of v to buf and returns the
// extended slice.
func AppendUint32(buf []byte, v uint32) []byte {
	var tmp [Uint32Size]byte

	binary.BigEndian.PutUint32(tmp[:], v)

	return append(buf, tmp[:]...)
}

// DecodeUint32 decodes a big-endian uint32 from the front of b, returning the
// value and the number of bytes consumed.
func DecodeUint32(b []byte) (uint32, int, error) {
	if len(b) < Uint32Size {
		return 0, 0, fmt.Errorf("%w: need %d bytes for uint32, have %d", ErrShortBuffer, Uint32Size, len(b))
	}

	return binary.BigEndian.Uint32(b), Uint32Size, nil
}

// AppendString appends a length-prefixed UTF-8 string to buf.
func AppendString(buf []byte, s string) []byte {
	buf = AppendUint32(buf, uint32(len(s)))

	return append(buf, s...)
}

// DecodeString decodes a length-prefixed string from the front of b,
// returning the value and the number of bytes consumed.
func DecodeString(b []byte) (string, int, error) {
	blob, n, err := DecodeBlob(b)
	if err != nil {
		return "", 0, err
	}

	return string(blob), n, nil
}

// AppendBlob appends a length-prefixed byte blob to buf.
func AppendBlob(buf []byte, data []byte) []byte {
	buf = AppendUint32(buf, uint32(len(data)))

	return append(buf, data...)
}

// DecodeBlob decodes a length-prefixed blob from the front of b, returning
// the value and the number of bytes consumed. The returned slice aliases b.
func DecodeBlob(b []byte) ([]byte, int, error) {
	length, n, err := DecodeUint32(b)
	if err != nil {
		return nil, 0, fmt.Errorf("decode blob length: %w", err)
	}

	total := n + int(length)
	if len(b) < total {
		return nil, 0, fmt.Errorf("%w: need %d bytes for blob body, have %d", ErrShortBuffer, int(length), len(b)-n)
	}

	return b[n:total], total, nil
}
