package services

import (
	"bytes"
	"strings"
	"sync"
)

// lineWriter splits engine output into lines and hands each non-empty one to
// emit, in order. Partial lines are held until completed or flushed.
type lineWriter struct {
	mu      sync.Mutex
	pending []byte
	emit    func(line string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.send(string(w.pending[:i]))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.send(string(w.pending))
		w.pending = nil
	}
}

func (w *lineWriter) send(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.emit(line)
}
