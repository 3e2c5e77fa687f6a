package coderun

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeLimit is raised when a program exceeds its step or time budget.
	ErrTimeLimit = errors.New("program exceeded its run time limit")
	// ErrCompileTimeout is raised when compilation does not answer in time.
	ErrCompileTimeout = errors.New("compilation timed out")
	// ErrBusy is returned when a cell is asked to run while already running.
	ErrBusy = errors.New("code cell is already running")
	// ErrNotEditing is returned for edits outside of the Editing state.
	ErrNotEditing = errors.New("code cell is not being edited")
)

// ExecError is an exception raised by the student's program.
type ExecError struct {
	Message string // traceback, already mapped to the student's line numbers
}

func (e *ExecError) Error() string { return e.Message }

// CompileError carries the compiler diagnostics.
type CompileError struct {
	Output string
}

func (e *CompileError) Error() string { return "compile error:\n" + e.Output }

// TransportError wraps a failure talking to a remote runner.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
