package coderun

import (
	"bytes"
	"io"
	"sync"
)

// Sentinel prefixes of control lines embedded in program output.
const (
	FileWritePrefix  = "##FILEWRITE## "  // python: "##FILEWRITE## <name> <json string>"
	FileUpdatePrefix = "##FILEUPDATE## " // c++: "##FILEUPDATE## <json object>"
)

// sentinelWriter passes output through, except whole lines starting with
// prefix which are handed to onLine (without prefix and newline).
// Output that cannot be a sentinel is never held back, so prompts written
// without a newline show up immediately.
type sentinelWriter struct {
	mu      sync.Mutex
	prefix  []byte
	out     io.Writer
	onLine  func(payload string)
	held    []byte
	midLine bool
}

func newSentinelWriter(prefix string, out io.Writer, onLine func(string)) *sentinelWriter {
	return &sentinelWriter{prefix: []byte(prefix), out: out, onLine: onLine}
}

func (w *sentinelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var pass []byte
	flushPass := func() error {
		if len(pass) == 0 {
			return nil
		}
		_, err := w.out.Write(pass)
		pass = pass[:0]
		return err
	}

	for _, b := range p {
		if w.held != nil {
			w.held = append(w.held, b)
			switch {
			case b == '\n' && bytes.HasPrefix(w.held, w.prefix):
				if err := flushPass(); err != nil {
					return 0, err
				}
				w.onLine(string(bytes.TrimRight(w.held[len(w.prefix):], "\r\n")))
				w.held = nil
				w.midLine = false
			case !bytes.HasPrefix(w.held, w.prefix) && !bytes.HasPrefix(w.prefix, w.held):
				pass = append(pass, w.held...)
				w.midLine = b != '\n'
				w.held = nil
			}
			continue
		}
		if !w.midLine && b == w.prefix[0] {
			w.held = []byte{b}
			continue
		}
		pass = append(pass, b)
		w.midLine = b != '\n'
	}
	if err := flushPass(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush handles what is still held at end of output.
func (w *sentinelWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.held == nil {
		return nil
	}
	held := w.held
	w.held = nil
	if bytes.HasPrefix(held, w.prefix) {
		w.onLine(string(bytes.TrimRight(held[len(w.prefix):], "\r\n")))
		return nil
	}
	_, err := w.out.Write(held)
	return err
}
