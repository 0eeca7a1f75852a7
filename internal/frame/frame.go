// Package frame implements the length-prefixed message framing used on the
// wire: a big-endian uint32 length followed by that many body bytes, whose
// first byte is the message-type id.
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/fcatalogd/internal/codec"
)

// DefaultMaxSize is the maximum frame body size accepted when no explicit
// bound is configured.
const DefaultMaxSize = 16 * 1024 * 1024

// ErrTooLarge is returned when a frame's declared length exceeds the
// configured maximum. It is fatal to the connection: per the protocol, a
// peer that sends an oversized frame is closed, not retried.
var ErrTooLarge = errors.New("frame: body exceeds maximum size")

// ErrEmptyBody is returned when a frame's declared length is zero: every
// frame carries at least the one-byte message-type id.
var ErrEmptyBody = errors.New("frame: body is empty")

// Reader reads length-prefixed frames from an underlying [io.Reader].
type Reader struct {
	r       io.Reader
	maxSize uint32
}

// NewReader returns a Reader bounded by maxSize. A maxSize of 0 selects
// [DefaultMaxSize].
func NewReader(r io.Reader, maxSize uint32) *Reader {
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}

	return &Reader{r: r, maxSize: maxSize}
}

// ReadFrame reads the next frame, returning its message-type byte and the
// remaining payload. The returned payload is a freshly allocated slice.
//
// io.EOF is returned unwrapped when the peer closes the connection between
// frames (a clean disconnect). A partial length prefix or body yields
// io.ErrUnexpectedEOF, wrapped.
func (fr *Reader) ReadFrame() (byte, []byte, error) {
	var lenBuf [codec.Uint32Size]byte

	_, err := io.ReadFull(fr.r, lenBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}

		return 0, nil, fmt.Errorf("frame: reading length prefix: %w", err)
	}

	length, _, err := codec.DecodeUint32(lenBuf[:])
	if err != nil {
		return 0, nil, fmt.Errorf("frame: decoding length prefix: %w", err)
	}

	if length == 0 {
		return 0, nil, ErrEmptyBody
	}

	if length > fr.maxSize {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, length, fr.maxSize)
	}

	body := make([]byte, length)

	_, err = io.ReadFull(fr.r, body)
	if err != nil {
		return 0, nil, fmt.Errorf("frame: reading body: %w", err)
	}

	return body[0], body[1:], nil
}

// Writer writes length-prefixed frames to an underlying [io.Writer].
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that writes frames to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one frame whose body is msgType followed by payload.
func (fw *Writer) WriteFrame(msgType byte, payload []byte) error {
	length := uint32(1 + len(payload))

	buf := make([]byte, 0, codec.Uint32Size+int(length))
	buf = codec.AppendUint32(buf, length)
	buf = append(buf, msgType)
	buf = append(buf, payload...)

	_, err := fw.w.Write(buf)
	if err != nil {
		return fmt.Errorf("frame: writing frame: %w", err)
	}

	return nil
}
