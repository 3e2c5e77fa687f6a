package wasipy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
)

func TestCopyUntil(t *testing.T) {
	marker := []byte("<END>")
	tests := []struct {
		name string
		src  io.Reader
		want string
	}{
		{name: "marker in one read", src: strings.NewReader("hello\n<END>ignored"), want: "hello\n"},
		{name: "marker split across reads", src: iotest.OneByteReader(strings.NewReader("a<EN<END>b")), want: "a<EN"},
		{name: "no marker", src: strings.NewReader("partial <EN"), want: "partial <EN"},
		{name: "empty output", src: strings.NewReader("<END>"), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			if err := copyUntil(&out, tt.src, marker); err != nil {
				t.Fatalf("copyUntil() error = %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("copyUntil() copied %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestNewWorkspace(t *testing.T) {
	ws, err := newWorkspace("<stdin>", "print('hi')\n")
	if err != nil {
		t.Fatalf("newWorkspace() error = %v", err)
	}
	defer ws.remove()

	bootstrap, err := os.ReadFile(ws.path(bootstrapFile))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`sys.stdout = open("/io/stdout", "w", buffering=1)`,
		`sys.stdin = open("/io/stdin", "r")`,
		`exec(compile(__source, "\u003cstdin\u003e", "exec"), {"__name__": "__main__"})`,
	} {
		if !strings.Contains(string(bootstrap), want) {
			t.Errorf("bootstrap does not contain %q:\n%s", want, bootstrap)
		}
	}
	for _, name := range []string{stdinPipe, stdoutPipe} {
		fi, err := os.Stat(ws.path(name))
		if err != nil || fi.Mode()&os.ModeNamedPipe == 0 {
			t.Errorf("%s is not a named pipe (%v)", name, err)
		}
	}
	if _, ok := ws.traceback(); ok {
		t.Error("traceback() reported an error before any run")
	}

	dir := ws.dir
	_ = ws.remove()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("workspace %s not removed", dir)
	}
}

func TestRuntime(t *testing.T) {
	wasmPath := filepath.Join(core.Conf.WorkDir, core.Conf.Runner.PythonWasmPath)
	if _, err := os.Stat(wasmPath); err != nil {
		t.Skipf("python interpreter not available at %s", wasmPath)
	}
	rt, err := Load(wasmPath, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	runner := coderun.NewPythonRunner(rt.NewInterpreter, core.Conf.Runner, nil)

	stdin := coderun.NewInputQueue()
	stdin.Push("Ada")
	files := coderun.NewFileStore(map[string]string{"data.txt": "3\n4\n"})
	code := "name = input('Name? ')\n" +
		"total = sum(int(l) for l in open('data.txt'))\n" +
		"print('Hello,', name, total)\n" +
		"with open('out.txt', 'w') as f:\n" +
		"    f.write('done')\n" +
		"1 / 0\n"

	res := runner.Run(context.Background(), coderun.Job{Key: "1code1", Code: code, Include: []string{"data.txt"}, Files: files, Stdin: stdin})

	if !strings.HasPrefix(res.Output, "Name? Hello, Ada 7\n") {
		t.Errorf("Run() output = %q", res.Output)
	}
	if !strings.Contains(res.Output, `File "<stdin>", line 6`) || !strings.Contains(res.Output, "ZeroDivisionError") {
		t.Errorf("Run() output = %q, want traceback at the student's line 6", res.Output)
	}
	if got, _ := files.Get("out.txt"); got != "done" {
		t.Errorf("out.txt = %q, want done", got)
	}
}
