package coderun

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultDebounce is the quiet period before a local edit is broadcast.
const DefaultDebounce = 300 * time.Millisecond

// ErrReadOnly is returned when a read-only viewer tries to edit.
var ErrReadOnly = errors.New("code cell is read-only")

// State of a code cell.
type State int

const (
	Viewing State = iota // syntax highlighted, read-only
	Editing              // plain-text editable
	Running              // execution in progress
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Running:
		return "running"
	}
	return "viewing"
}

// ChangeFunc is the only upstream hand-off of a cell. broadcastOnly marks a
// transient mirror update; false means the value must be saved.
type ChangeFunc func(key, value string, broadcastOnly bool)

type EditorOption func(e *Editor)

func WithClock(clk clock.Clock) EditorOption {
	return func(e *Editor) { e.clock = clk }
}

func WithDebounce(d time.Duration) EditorOption {
	return func(e *Editor) { e.debounce = d }
}

// Editor is the state machine of one code cell.
// Remote updates received while the cell is edited (or running) are deferred
// until editing starts or ends, so local keystrokes are never overwritten.
type Editor struct {
	mu       sync.Mutex
	key      string
	editable bool
	onChange ChangeFunc
	clock    clock.Clock
	debounce time.Duration

	state  State
	resume State // state to return to after Running

	code       string
	saved      string // last durably saved value
	lastSent   string // last value handed upstream
	lastRemote string
	pending    *string // deferred remote update

	timer *clock.Timer
	run   *Guard
	gen   int
}

// NewEditor returns an Editor in the Viewing state. A non-editable editor is a
// read-only mirror: it applies remote updates and runs, but never edits.
func NewEditor(key, code string, editable bool, onChange ChangeFunc, opts ...EditorOption) *Editor {
	e := &Editor{
		key:        key,
		editable:   editable,
		onChange:   onChange,
		clock:      clock.New(),
		debounce:   DefaultDebounce,
		code:       code,
		saved:      code,
		lastSent:   code,
		lastRemote: code,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Editor) Key() string { return e.key }

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) Code() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.code
}

// editing reports whether keystrokes are accepted. Must hold e.mu.
func (e *Editor) editing() bool {
	return e.state == Editing || (e.state == Running && e.resume == Editing)
}

// StartEditing enters Editing and applies any deferred remote update first.
// It returns the content the editor starts from.
func (e *Editor) StartEditing() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editable {
		return e.code, ErrReadOnly
	}
	if e.state == Running {
		e.resume = Editing
	} else {
		e.state = Editing
	}
	e.flushPending()
	return e.code, nil
}

// Edit replaces the content and schedules a debounced broadcast.
func (e *Editor) Edit(value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing() {
		return ErrNotEditing
	}
	e.code = value
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = e.clock.AfterFunc(e.debounce, func() { e.send(value, true) })
	return nil
}

// DoneEditing leaves Editing: the pending broadcast is replaced by an
// immediate durable save, then deferred remote updates are applied.
func (e *Editor) DoneEditing() {
	e.mu.Lock()
	if !e.editing() {
		e.mu.Unlock()
		return
	}
	if e.state == Running {
		e.resume = Viewing
	} else {
		e.state = Viewing
	}
	e.stopTimer()
	commit := e.commit()
	e.flushPending()
	e.mu.Unlock()
	commit()
}

// Remote applies an update coming from another viewer, or defers it while the
// cell is being edited or run.
func (e *Editor) Remote(value string) (applied bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if value == e.lastRemote {
		return false
	}
	e.lastRemote = value
	if e.state != Viewing {
		e.pending = &value
		return false
	}
	e.adopt(value)
	return true
}

// Run commits unsaved edits and executes the current code with r. A run
// still in progress is torn down first: at most one run per cell.
func (e *Editor) Run(ctx context.Context, r Runner, job Job) Result {
	ctx, cancel := context.WithCancel(ctx)
	guard := new(Guard)
	guard.Defer(func() error { cancel(); return nil })

	e.mu.Lock()
	prev := e.run
	e.run = guard
	e.gen++
	gen := e.gen
	if e.state != Running {
		e.resume = e.state
	}
	e.state = Running
	commit := e.commit()
	job.Key, job.Code = e.key, e.code
	e.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	commit()

	res := r.Run(ctx, job)
	_ = guard.Close()

	e.mu.Lock()
	if e.gen == gen {
		e.run = nil
		e.state = e.resume
		if e.state == Viewing {
			e.flushPending()
		}
	}
	e.mu.Unlock()
	return res
}

// Stop cancels the current run, if any.
func (e *Editor) Stop() {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run != nil {
		_ = run.Close()
	}
}

// Close disposes the cell: pending timers are cleared and any run is torn down.
func (e *Editor) Close() error {
	e.mu.Lock()
	e.stopTimer()
	run := e.run
	e.mu.Unlock()
	if run != nil {
		return run.Close()
	}
	return nil
}

// commit prepares the durable save of unsaved edits. Must hold e.mu; the
// returned func must be called without it.
func (e *Editor) commit() func() {
	if !e.editable || e.code == e.saved {
		return func() {}
	}
	value := e.code
	e.saved = value
	return func() { e.send(value, false) }
}

// send hands value upstream. Broadcasts are de-duplicated against the last
// value sent; saves are de-duplicated by commit.
func (e *Editor) send(value string, broadcastOnly bool) {
	e.mu.Lock()
	if !e.editable || (broadcastOnly && value == e.lastSent) {
		e.mu.Unlock()
		return
	}
	e.lastSent = value
	e.mu.Unlock()
	if e.onChange != nil {
		e.onChange(e.key, value, broadcastOnly)
	}
}

// Must hold e.mu.
func (e *Editor) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Must hold e.mu.
func (e *Editor) flushPending() {
	if e.pending == nil {
		return
	}
	value := *e.pending
	e.pending = nil
	e.adopt(value)
}

// Must hold e.mu.
func (e *Editor) adopt(value string) {
	e.code, e.saved, e.lastSent = value, value, value
}
