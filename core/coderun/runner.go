// Package coderun runs the code cells of an activity: the per-cell editor
// state machine and the Python and C++ runners behind it.
package coderun

import (
	"context"
	"io"
)

type (
	// Job is one execution of a code cell.
	Job struct {
		Key      string     // code response key, eg. "1acode1"
		Code     string     // student's source
		Include  []string   // declared include files, in order
		Files    *FileStore // shared file contents of the activity, may be nil
		Stdin    LineReader // line-based standard input, may be nil
		Keys     io.Reader  // raw keystrokes from a terminal (C++), may be nil; closed with the run when an io.Closer
		Terminal io.Writer  // visible terminal, may be nil
	}

	// Result is what a run leaves behind. Err is informational: it has already
	// been written to the output.
	Result struct {
		Output    string
		OutputKey string
		Err       error
	}

	Runner interface {
		// Run executes job until it ends or ctx is done. Program, compile and
		// transport errors are written to the output and reported in Result.Err.
		Run(ctx context.Context, job Job) Result
	}
)

func (j Job) files() *FileStore {
	if j.Files == nil {
		return NewFileStore(nil)
	}
	return j.Files
}
