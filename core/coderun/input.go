package coderun

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputClosed is returned by ReadLine once the queue is closed and drained.
var ErrInputClosed = errors.New("input closed")

// LineReader serves a program's standard input one line at a time.
type LineReader interface {
	// ReadLine blocks until a line is available, ctx is done or input is closed.
	ReadLine(ctx context.Context) (string, error)
}

// InputQueue is a pull-based stdin: the program blocks in ReadLine until a
// console pushes a line.
type InputQueue struct {
	lines     chan string
	done      chan struct{}
	closeOnce sync.Once
}

var _ LineReader = (*InputQueue)(nil)

func NewInputQueue() *InputQueue {
	return &InputQueue{lines: make(chan string, 64), done: make(chan struct{})}
}

// Push queues one line (without its trailing newline). It reports false once the queue is closed.
func (q *InputQueue) Push(line string) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.lines <- strings.TrimSuffix(line, "\n"):
		return true
	case <-q.done:
		return false
	}
}

func (q *InputQueue) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-q.lines:
		return line, nil
	default:
	}
	select {
	case line := <-q.lines:
		return line, nil
	case <-q.done:
		return "", ErrInputClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Drain returns the lines queued so far without blocking.
func (q *InputQueue) Drain() []string {
	var out []string
	for {
		select {
		case line := <-q.lines:
			out = append(out, line)
		default:
			return out
		}
	}
}

func (q *InputQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// PipeLines copies lines from r into q until r ends or ctx is done.
func PipeLines(ctx context.Context, r io.Reader, q *InputQueue) error {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.Read(chunk)
		for _, b := range chunk[:n] {
			if b == '\n' {
				if !q.Push(string(buf)) {
					return ErrInputClosed
				}
				buf = buf[:0]
				continue
			}
			buf = append(buf, b)
		}
		if err != nil {
			if len(buf) > 0 {
				q.Push(string(buf))
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
