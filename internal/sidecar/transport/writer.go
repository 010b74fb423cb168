package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

var (
	ErrClosed       = errors.New("transport closed")
	ErrInvalidFrame = errors.New("frame must not contain a newline")
)

// Writer writes newline-terminated frames to the underlying stream.
// Concurrent calls to WriteLine are serialized, so frames never
// interleave.
type Writer struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// NewWriter wraps the given stream, usually the stdin of the worker.
func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{w: w}
}

// WriteLine writes b followed by a newline as a single write.
func (t *Writer) WriteLine(b []byte) error {
	if bytes.IndexByte(b, '\n') >= 0 {
		return ErrInvalidFrame
	}

	frame := make([]byte, 0, len(b)+1)
	frame = append(frame, b...)
	frame = append(frame, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	if _, err := t.w.Write(frame); err != nil {
		return err
	}

	return nil
}

// Close closes the underlying stream. Subsequent writes fail with
// ErrClosed. Close is idempotent.
func (t *Writer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	return t.w.Close()
}

// Closed reports whether the writer was closed.
func (t *Writer) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}
