package fsutil

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// AtomicWriter writes files atomically via a temp-file-then-rename, backed by
// [github.com/natefinch/atomic]. Used for the registry's best-effort
// catalogs.json manifest, which is never consulted for correctness — a
// torn write there should simply never happen, not be recovered from.
type AtomicWriter struct{}

// NewAtomicWriter returns an AtomicWriter.
func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{}
}

// WriteFile atomically replaces path's contents with data.
func (w *AtomicWriter) WriteFile(path string, data []byte) error {
	err := atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("fsutil: atomic write %q: %w", path, err)
	}

	return nil
}
