package coderun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
)

// PythonFilename is the name the program runs under; traceback lines of
// that file are mapped back to the student's line numbers.
const PythonFilename = "<stdin>"

type (
	// InterpreterConfig is what an embedded interpreter is created with.
	InterpreterConfig struct {
		Stdout    io.Writer
		Stdin     LineReader
		StepLimit int // 0 means unlimited
	}

	// Interpreter executes Python source. Exec returns an *ExecError for
	// exceptions raised by the program, ErrTimeLimit when the step budget is
	// exhausted and ctx.Err() when ctx is done first.
	Interpreter interface {
		Exec(ctx context.Context, filename, source string) error
	}

	InterpreterFactory func(cfg InterpreterConfig) (Interpreter, error)
)

// PythonRunner runs Python cells on an embedded interpreter.
type PythonRunner struct {
	newInterpreter InterpreterFactory
	stepLimit      int
	timeLimit      time.Duration
	log            core.Logger
}

var _ Runner = (*PythonRunner)(nil)

// NewPythonRunner returns a runner using the step and time limits of conf.
// log may be nil.
func NewPythonRunner(newInterpreter InterpreterFactory, conf core.RunnerConfig, log core.Logger) *PythonRunner {
	return &PythonRunner{
		newInterpreter: newInterpreter,
		stepLimit:      conf.PythonStepLimit,
		timeLimit:      conf.PythonTimeLimit,
		log:            log,
	}
}

func (p *PythonRunner) Run(ctx context.Context, job Job) Result {
	capture := NewCapture(job.Key, job.Terminal)
	files := job.files()
	snapshot, _ := files.Snapshot()
	prelude, offset := BuildPrelude(job.Include, snapshot)

	out := newSentinelWriter(FileWritePrefix, capture, func(payload string) {
		if name, content, ok := parseFileWrite(payload); ok {
			files.Set(name, content)
		}
	})

	stdin := job.Stdin
	if stdin == nil {
		closed := NewInputQueue()
		_ = closed.Close()
		stdin = closed
	}

	if p.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeLimit)
		defer cancel()
	}

	res := Result{OutputKey: capture.OutputKey()}
	interp, err := p.newInterpreter(InterpreterConfig{Stdout: out, Stdin: stdin, StepLimit: p.stepLimit})
	if err != nil {
		res.Err = errors.Wrap(err, "python runtime")
		if p.log != nil {
			p.log.Error(res.Err.Error(), err)
		}
		capture.Println("❌ Error: Python runtime unavailable")
		res.Output = capture.String()
		return res
	}

	err = interp.Exec(ctx, PythonFilename, prelude+job.Code)
	_ = out.Flush()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeLimit
		}
		res.Err = err
		capture.Println("\n❌ Error:\n" + describePythonError(err, offset))
	}
	res.Output = capture.String()
	return res
}

func describePythonError(err error, offset int) string {
	var execErr *ExecError
	switch {
	case errors.As(err, &execErr):
		return ShiftTraceback(execErr.Message, offset)
	case errors.Is(err, ErrTimeLimit):
		return "TimeLimitError: " + ErrTimeLimit.Error()
	case errors.Is(err, context.Canceled):
		return "KeyboardInterrupt: program stopped"
	}
	return err.Error()
}

var (
	tracebackLineRe = regexp.MustCompile(`(File "` + regexp.QuoteMeta(PythonFilename) + `(?:\.py)?", line )(\d+)`)
	onLineRe        = regexp.MustCompile(`(?i)(on line\s+)(\d+)`)
)

// ShiftTraceback maps line numbers of the merged source back to the
// student's code, which starts after offset prelude lines. Line numbers
// never go below 1.
func ShiftTraceback(msg string, offset int) string {
	shift := func(re *regexp.Regexp) func(string) string {
		return func(m string) string {
			sub := re.FindStringSubmatch(m)
			n, err := strconv.Atoi(sub[2])
			if err != nil {
				return m
			}
			n -= offset
			if n < 1 {
				n = 1
			}
			return sub[1] + strconv.Itoa(n)
		}
	}
	msg = tracebackLineRe.ReplaceAllStringFunc(msg, shift(tracebackLineRe))
	return onLineRe.ReplaceAllStringFunc(msg, shift(onLineRe))
}

// parseFileWrite splits a "<name> <json string>" payload.
func parseFileWrite(payload string) (name, content string, ok bool) {
	i := strings.IndexByte(payload, ' ')
	if i <= 0 {
		return "", "", false
	}
	name, raw := payload[:i], payload[i+1:]
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		content = raw
	}
	return name, content, true
}

// filesShim gives the program a virtual open() over __files__. Writes are
// reported on stdout as FileWritePrefix lines.
const filesShim = `import json as _vfs_json

class _VirtualFile:
    def __init__(self, name, content, mode):
        self.name = name
        self.mode = mode
        self.closed = False
        self._lines = content.splitlines(True)
        self._pos = 0

    def read(self):
        rest = "".join(self._lines[self._pos:])
        self._pos = len(self._lines)
        return rest

    def readline(self):
        if self._pos < len(self._lines):
            self._pos += 1
            return self._lines[self._pos - 1]
        return ""

    def readlines(self):
        rest = self._lines[self._pos:]
        self._pos = len(self._lines)
        return rest

    def write(self, s):
        __files__[self.name] += s
        print("##FILEWRITE## " + self.name + " " + _vfs_json.dumps(__files__[self.name]))
        return len(s)

    def close(self):
        self.closed = True

    def __iter__(self):
        while self._pos < len(self._lines):
            yield self.readline()

    def __enter__(self):
        return self

    def __exit__(self, *exc):
        self.close()
        return False

def open(name, mode="r", *args, **kwargs):
    if "w" in mode:
        __files__[name] = ""
    elif "a" in mode:
        __files__.setdefault(name, "")
    elif name not in __files__:
        raise FileNotFoundError("No such file: " + name)
    return _VirtualFile(name, __files__[name], mode)
`

// BuildPrelude returns the source placed ahead of the student's code and its
// line count. It holds the virtual file system, then every declared include
// in order, each wrapped in begin/end markers: Python modules are inlined and
// other files are loaded into the virtual file system. Undeclared files of
// the store are reachable through open() too.
func BuildPrelude(include []string, files map[string]string) (prelude string, lines int) {
	declared := make(map[string]bool, len(include))
	for _, name := range include {
		declared[name] = true
	}
	var others []string
	for name := range files {
		if !declared[name] && !strings.HasSuffix(name, ".py") {
			others = append(others, name)
		}
	}
	sort.Strings(others)

	var b strings.Builder
	b.WriteString("__files__ = {}\n")
	for _, name := range others {
		fmt.Fprintf(&b, "__files__[%s] = %s\n", pyString(name), pyString(files[name]))
	}
	b.WriteString(filesShim)

	for _, name := range include {
		content, ok := files[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "# --- BEGIN include: %s ---\n", name)
		if strings.HasSuffix(name, ".py") {
			b.WriteString(content)
			if !strings.HasSuffix(content, "\n") {
				b.WriteByte('\n')
			}
		} else {
			fmt.Fprintf(&b, "__files__[%s] = %s\n", pyString(name), pyString(content))
		}
		fmt.Fprintf(&b, "# --- END include: %s ---\n", name)
	}

	prelude = b.String()
	return prelude, strings.Count(prelude, "\n")
}

// pyString quotes s as a Python string literal.
func pyString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
