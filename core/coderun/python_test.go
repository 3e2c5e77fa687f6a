package coderun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/pogil/core"
)

// fakeInterpreter plays a scripted program instead of running Python.
type fakeInterpreter struct {
	cfg     InterpreterConfig
	source  string
	program func(ctx context.Context, cfg InterpreterConfig) error
}

func (f *fakeInterpreter) Exec(ctx context.Context, filename, source string) error {
	if filename != PythonFilename {
		return fmt.Errorf("unexpected filename %q", filename)
	}
	f.source = source
	return f.program(ctx, f.cfg)
}

func fakeFactory(program func(ctx context.Context, cfg InterpreterConfig) error) (InterpreterFactory, *fakeInterpreter) {
	fake := &fakeInterpreter{program: program}
	return func(cfg InterpreterConfig) (Interpreter, error) {
		fake.cfg = cfg
		return fake, nil
	}, fake
}

func TestBuildPrelude(t *testing.T) {
	files := map[string]string{
		"data.txt":  "1\n2\n",
		"helper.py": "def twice(x):\n    return 2 * x",
		"notes.md":  "# notes",
		"other.py":  "print('not included')",
	}
	prelude, lines := BuildPrelude([]string{"helper.py", "data.txt", "missing.txt"}, files)

	if lines != strings.Count(prelude, "\n") {
		t.Errorf("BuildPrelude() lines = %d, want %d", lines, strings.Count(prelude, "\n"))
	}
	if !strings.HasPrefix(prelude, "__files__ = {}\n__files__[\"notes.md\"] = \"# notes\"\n") {
		t.Errorf("undeclared data files not loaded first:\n%s", prelude)
	}
	wantTail := "# --- BEGIN include: helper.py ---\n" +
		"def twice(x):\n    return 2 * x\n" +
		"# --- END include: helper.py ---\n" +
		"# --- BEGIN include: data.txt ---\n" +
		"__files__[\"data.txt\"] = \"1\\n2\\n\"\n" +
		"# --- END include: data.txt ---\n"
	if !strings.HasSuffix(prelude, wantTail) {
		t.Errorf("includes not wrapped in declared order, got:\n%s", prelude)
	}
	for _, absent := range []string{"not included", "missing.txt"} {
		if strings.Contains(prelude, absent) {
			t.Errorf("prelude contains %q", absent)
		}
	}
}

func TestShiftTraceback(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		offset int
		want   string
	}{
		{
			name:   "student frame",
			msg:    "Traceback (most recent call last):\n  File \"<stdin>\", line 45, in <module>\nNameError: name 'x' is not defined on line 45",
			offset: 40,
			want:   "Traceback (most recent call last):\n  File \"<stdin>\", line 5, in <module>\nNameError: name 'x' is not defined on line 5",
		},
		{
			name:   "prelude frame clamps to 1",
			msg:    "  File \"<stdin>.py\", line 12, in write",
			offset: 40,
			want:   "  File \"<stdin>.py\", line 1, in write",
		},
		{
			name:   "other files untouched",
			msg:    "  File \"/lib/python3.11/json/__init__.py\", line 231, in dumps",
			offset: 40,
			want:   "  File \"/lib/python3.11/json/__init__.py\", line 231, in dumps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShiftTraceback(tt.msg, tt.offset); got != tt.want {
				t.Errorf("ShiftTraceback() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPythonRunner_Run(t *testing.T) {
	factory, fake := fakeFactory(func(ctx context.Context, cfg InterpreterConfig) error {
		_, _ = io.WriteString(cfg.Stdout, "Name? ")
		name, err := cfg.Stdin.ReadLine(ctx)
		if err != nil {
			return err
		}
		_, _ = io.WriteString(cfg.Stdout, "Hello, "+name+"\n")
		_, _ = io.WriteString(cfg.Stdout, "##FILEWRITE## out.txt \"Hello\\n\"\n")
		return nil
	})
	runner := NewPythonRunner(factory, core.RunnerConfig{PythonStepLimit: 50000, PythonTimeLimit: time.Second}, nil)

	stdin := NewInputQueue()
	stdin.Push("Ada")
	var term strings.Builder
	store := NewFileStore(map[string]string{"data.txt": "1"})
	code := "name = input('Name? ')\nprint('Hello, ' + name)\n"

	res := runner.Run(context.Background(), Job{
		Key:      "2code1",
		Code:     code,
		Include:  []string{"data.txt"},
		Files:    store,
		Stdin:    stdin,
		Terminal: &term,
	})

	if res.Err != nil {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if want := "Name? Hello, Ada\n"; res.Output != want || term.String() != want {
		t.Errorf("Run() output = %q, terminal = %q, want %q", res.Output, term.String(), want)
	}
	if res.OutputKey != "2output1" {
		t.Errorf("Run() output key = %q, want 2output1", res.OutputKey)
	}
	if got, _ := store.Get("out.txt"); got != "Hello\n" {
		t.Errorf("out.txt = %q, want file write applied", got)
	}
	if !strings.HasSuffix(fake.source, "# --- END include: data.txt ---\n"+code) {
		t.Errorf("student code does not follow the include prelude:\n%s", fake.source)
	}
	if fake.cfg.StepLimit != 50000 {
		t.Errorf("StepLimit = %d, want 50000", fake.cfg.StepLimit)
	}
}

func TestPythonRunner_errors(t *testing.T) {
	files := map[string]string{"data.txt": "1"}
	_, offset := BuildPrelude(nil, files)

	tests := []struct {
		name       string
		program    func(ctx context.Context, cfg InterpreterConfig) error
		wantErr    error
		wantOutput string
	}{
		{
			name: "exception",
			program: func(ctx context.Context, cfg InterpreterConfig) error {
				_, _ = io.WriteString(cfg.Stdout, "before\n")
				return &ExecError{Message: fmt.Sprintf("Traceback (most recent call last):\n  File \"<stdin>\", line %d, in <module>\nZeroDivisionError: division by zero", offset+2)}
			},
			wantOutput: "before\n\n❌ Error:\nTraceback (most recent call last):\n  File \"<stdin>\", line 2, in <module>\nZeroDivisionError: division by zero\n",
		},
		{
			name: "step budget",
			program: func(ctx context.Context, cfg InterpreterConfig) error {
				return ErrTimeLimit
			},
			wantErr:    ErrTimeLimit,
			wantOutput: "\n❌ Error:\nTimeLimitError: program exceeded its run time limit\n",
		},
		{
			name: "time budget",
			program: func(ctx context.Context, cfg InterpreterConfig) error {
				<-ctx.Done()
				return ctx.Err()
			},
			wantErr:    ErrTimeLimit,
			wantOutput: "\n❌ Error:\nTimeLimitError: program exceeded its run time limit\n",
		},
		{
			name: "input without console",
			program: func(ctx context.Context, cfg InterpreterConfig) error {
				_, err := cfg.Stdin.ReadLine(ctx)
				return err
			},
			wantErr:    ErrInputClosed,
			wantOutput: "\n❌ Error:\ninput closed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, _ := fakeFactory(tt.program)
			runner := NewPythonRunner(factory, core.RunnerConfig{PythonTimeLimit: 20 * time.Millisecond}, nil)
			res := runner.Run(context.Background(), Job{Key: "1acode1", Files: NewFileStore(files)})

			if res.Output != tt.wantOutput {
				t.Errorf("Run() output = %q, want %q", res.Output, tt.wantOutput)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", res.Err, tt.wantErr)
			}
			if res.Err == nil {
				t.Error("Run() error = nil")
			}
		})
	}
}

func TestPythonRunner_runtimeUnavailable(t *testing.T) {
	factory := func(InterpreterConfig) (Interpreter, error) { return nil, errors.New("python.wasm not found") }
	res := NewPythonRunner(factory, core.RunnerConfig{}, nil).Run(context.Background(), Job{Key: "0code1"})
	if res.Err == nil || !strings.Contains(res.Err.Error(), "python.wasm not found") {
		t.Errorf("Run() error = %v", res.Err)
	}
	if res.Output != "❌ Error: Python runtime unavailable\n" {
		t.Errorf("Run() output = %q", res.Output)
	}
}

func TestLineEditor(t *testing.T) {
	var echo strings.Builder
	var sent []string
	le := NewLineEditor(&echo, func(data string) error {
		sent = append(sent, data)
		return nil
	})

	if err := le.Feed("\x7fab\x7fc\r\n4"); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if le.Pending() != "4" {
		t.Errorf("Pending() = %q, want 4", le.Pending())
	}
	_ = le.Feed("2\n\x03")

	if want := []string{"ac\n", "42\n", Interrupt}; strings.Join(sent, "|") != strings.Join(want, "|") {
		t.Errorf("sent = %q, want %q", sent, want)
	}
	if want := "ab\b \bc\r\n42\r\n^C\r\n"; echo.String() != want {
		t.Errorf("echo = %q, want %q", echo.String(), want)
	}
}
