package coderun

import "io"

// Interrupt is the keystroke forwarded to a remote program to stop it (Ctrl-C).
const Interrupt = "\x03"

const (
	keyInterrupt = '\x03'
	keyBackspace = '\b'
	keyDelete    = '\x7f'
)

// LineEditor is the local line discipline of an interactive terminal.
// Keys are echoed and buffered; Enter sends the whole line, backspace edits
// the buffer and Ctrl-C is forwarded at once.
type LineEditor struct {
	echo   io.Writer
	send   func(data string) error
	buf    []rune
	lastCR bool
}

// NewLineEditor returns a LineEditor echoing to echo (may be nil) and handing
// complete lines to send.
func NewLineEditor(echo io.Writer, send func(data string) error) *LineEditor {
	return &LineEditor{echo: echo, send: send}
}

// Feed processes a chunk of raw keystrokes.
func (l *LineEditor) Feed(keys string) error {
	for _, r := range keys {
		if err := l.key(r); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the line typed so far.
func (l *LineEditor) Pending() string { return string(l.buf) }

func (l *LineEditor) key(r rune) error {
	// "\r\n" is a single Enter
	crlf := r == '\n' && l.lastCR
	l.lastCR = r == '\r'
	if crlf {
		return nil
	}

	switch r {
	case '\r', '\n':
		l.write("\r\n")
		line := string(l.buf) + "\n"
		l.buf = l.buf[:0]
		return l.send(line)
	case keyDelete, keyBackspace:
		if len(l.buf) == 0 {
			return nil
		}
		l.buf = l.buf[:len(l.buf)-1]
		l.write("\b \b")
		return nil
	case keyInterrupt:
		l.buf = l.buf[:0]
		l.write("^C\r\n")
		return l.send(Interrupt)
	}
	l.buf = append(l.buf, r)
	l.write(string(r))
	return nil
}

func (l *LineEditor) write(s string) {
	if l.echo != nil {
		_, _ = io.WriteString(l.echo, s)
	}
}
