package wasipy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	bootstrapFile = "bootstrap.py"
	programFile   = "program.py"
	stdinPipe     = "stdin"
	stdoutPipe    = "stdout"
	errorFile     = "error"
)

// endMarker is written by the host after the instance exits; the output copy
// stops there.
var endMarker = []byte("\x00\x00wasipy:end\x00\x00")

// bootstrapTemplate swaps the named pipes in for the standard streams, then
// runs the program as __main__ under the given filename. An uncaught
// exception is written to the error file without the bootstrap's own frame.
const bootstrapTemplate = `import sys, traceback
sys.stdout = open(%[1]s, "w", buffering=1)
sys.stderr = sys.stdout
sys.stdin = open(%[2]s, "r")
try:
    with open(%[3]s) as f:
        __source = f.read()
    exec(compile(__source, %[5]s, "exec"), {"__name__": "__main__"})
except SystemExit:
    pass
except BaseException as e:
    with open(%[4]s, "w") as f:
        f.write("".join(traceback.format_exception(type(e), e, e.__traceback__.tb_next)))
finally:
    sys.stdout.flush()
`

type workspace struct {
	dir string
}

func newWorkspace(filename, source string) (*workspace, error) {
	dir, err := os.MkdirTemp("", "wasipy-")
	if err != nil {
		return nil, errors.Wrap(err, "creating python workspace")
	}
	ws := &workspace{dir: dir}

	guest := func(name string) string { return quote(guestDir + "/" + name) }
	bootstrap := fmt.Sprintf(bootstrapTemplate,
		guest(stdoutPipe), guest(stdinPipe), guest(programFile), guest(errorFile), quote(filename))

	for name, content := range map[string]string{bootstrapFile: bootstrap, programFile: source} {
		if err := os.WriteFile(ws.path(name), []byte(content), 0o600); err != nil {
			_ = ws.remove()
			return nil, errors.Wrapf(err, "writing %s", name)
		}
	}
	for _, name := range []string{stdinPipe, stdoutPipe} {
		if err := mkfifo(ws.path(name)); err != nil {
			_ = ws.remove()
			return nil, errors.Wrapf(err, "creating %s pipe", name)
		}
	}
	return ws, nil
}

func (ws *workspace) path(name string) string { return filepath.Join(ws.dir, name) }

// openPipes opens the host ends of both pipes. Opening read-write never
// blocks, whether or not the program ever opens its end.
func (ws *workspace) openPipes() (stdin, stdout *os.File, err error) {
	if stdin, err = os.OpenFile(ws.path(stdinPipe), os.O_RDWR, 0); err != nil {
		return nil, nil, errors.Wrap(err, "opening stdin pipe")
	}
	if stdout, err = os.OpenFile(ws.path(stdoutPipe), os.O_RDWR, 0); err != nil {
		_ = stdin.Close()
		return nil, nil, errors.Wrap(err, "opening stdout pipe")
	}
	return stdin, stdout, nil
}

// traceback returns the uncaught exception of the program, if any.
func (ws *workspace) traceback() (string, bool) {
	b, err := os.ReadFile(ws.path(errorFile))
	if err != nil || len(b) == 0 {
		return "", false
	}
	return string(bytes.TrimRight(b, "\n")), true
}

func (ws *workspace) remove() error {
	return os.RemoveAll(ws.dir)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// copyUntil copies src to dst up to the first occurrence of marker.
// Bytes that may start the marker are held back until they are decided.
func copyUntil(dst io.Writer, src io.Reader, marker []byte) error {
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := src.Read(buf)
		pending = append(pending, buf[:n]...)

		if i := bytes.Index(pending, marker); i >= 0 {
			_, werr := dst.Write(pending[:i])
			return werr
		}
		keep := partialSuffix(pending, marker)
		if out := pending[:len(pending)-keep]; len(out) > 0 {
			if _, werr := dst.Write(out); werr != nil {
				return werr
			}
		}
		pending = append(pending[:0], pending[len(pending)-keep:]...)

		if err != nil {
			if err == io.EOF {
				_, werr := dst.Write(pending)
				return werr
			}
			return err
		}
	}
}

// partialSuffix is the length of the longest suffix of b that is a proper
// prefix of marker.
func partialSuffix(b, marker []byte) int {
	n := len(marker) - 1
	if len(b) < n {
		n = len(b)
	}
	for k := n; k > 0; k-- {
		if bytes.Equal(b[len(b)-k:], marker[:k]) {
			return k
		}
	}
	return 0
}
