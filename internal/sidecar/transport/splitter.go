package transport

import (
	"bytes"
	"strings"
	"sync"
)

// LineHandler is called for every complete, non-empty line.
type LineHandler func(line string)

// LineSplitter is an io.Writer that frames a byte stream into lines.
// Data is buffered until a newline arrives; every complete line is
// trimmed of surrounding whitespace and passed to the handler in the
// order it was received. Empty lines are dropped.
type LineSplitter struct {
	mu      sync.Mutex
	buf     []byte
	closed  bool
	handler LineHandler
}

// NewLineSplitter creates a splitter that calls handler for each line.
func NewLineSplitter(handler LineHandler) *LineSplitter {
	return &LineSplitter{handler: handler}
}

// Write buffers p and emits every line that is complete afterwards.
// The handler is called synchronously from Write.
func (s *LineSplitter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	s.buf = append(s.buf, p...)

	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}

		line := strings.TrimSpace(string(s.buf[:i]))
		s.buf = s.buf[i+1:]

		if line == "" {
			continue
		}

		s.handler(line)
	}

	// release the backing array once everything was consumed
	if len(s.buf) == 0 {
		s.buf = nil
	}

	return len(p), nil
}

// Buffered returns the number of bytes held back as a partial line.
func (s *LineSplitter) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.buf)
}

// Close stops the splitter and returns the unterminated remainder,
// which is never passed to the handler.
func (s *LineSplitter) Close() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	rest := strings.TrimSpace(string(s.buf))
	s.buf = nil

	return rest
}
