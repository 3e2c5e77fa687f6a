// Package wasipy runs Python cells on CPython compiled to WebAssembly (WASI),
// hosted by wasmer.
//
// wasmer's WASI layer has no streaming stdio, so the program talks to the
// host through two named pipes placed in its working directory; a small
// bootstrap script swaps them in for sys.stdin and sys.stdout.
// wasmer cannot interrupt a running instance either: on timeout the instance
// is abandoned and its stdin closed.
package wasipy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
)

const (
	guestDir  = "/io"
	guestHome = "/usr/local"
)

// Runtime holds the compiled interpreter, shared by every run.
type Runtime struct {
	libDir string
	log    core.Logger

	once     sync.Once
	wasm     []byte
	compiled []byte // serialized module
	err      error
}

// Load reads the interpreter at wasmPath. Its standard library is expected in
// the "lib" directory next to it (holding python3.X). log may be nil.
func Load(wasmPath string, log core.Logger) (*Runtime, error) {
	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading python interpreter")
	}
	return &Runtime{
		libDir: filepath.Join(filepath.Dir(wasmPath), "lib"),
		log:    log,
		wasm:   wasm,
	}, nil
}

// NewInterpreter is a coderun.InterpreterFactory.
// Step limits are not supported by wasmer: only the run time limit applies.
func (rt *Runtime) NewInterpreter(cfg coderun.InterpreterConfig) (coderun.Interpreter, error) {
	if err := rt.compile(); err != nil {
		return nil, err
	}
	return &interpreter{rt: rt, cfg: cfg}, nil
}

// compile validates and compiles the interpreter once; each run then only
// deserializes it into its own store.
func (rt *Runtime) compile() error {
	rt.once.Do(func() {
		store := wasmer.NewStore(wasmer.NewEngine())
		module, err := wasmer.NewModule(store, rt.wasm)
		if err != nil {
			rt.err = errors.Wrap(err, "compiling python interpreter")
			return
		}
		if rt.compiled, err = module.Serialize(); err != nil {
			rt.err = errors.Wrap(err, "serializing python interpreter")
		}
		rt.wasm = nil
	})
	return rt.err
}

type interpreter struct {
	rt  *Runtime
	cfg coderun.InterpreterConfig
}

func (in *interpreter) Exec(ctx context.Context, filename, source string) error {
	ws, err := newWorkspace(filename, source)
	if err != nil {
		return err
	}
	stdin, stdout, err := ws.openPipes()
	if err != nil {
		_ = ws.remove()
		return err
	}

	copied := make(chan error, 1)
	go func() { copied <- copyUntil(in.cfg.Stdout, stdout, endMarker) }()

	inputCtx, stopInput := context.WithCancel(ctx)
	go func() {
		defer stdin.Close()
		for {
			line, err := in.cfg.Stdin.ReadLine(inputCtx)
			if err != nil {
				return
			}
			if _, err := stdin.WriteString(line + "\n"); err != nil {
				return
			}
		}
	}()

	exited := make(chan error, 1)
	go func() { exited <- in.rt.start(ws.dir) }()

	select {
	case <-ctx.Done():
		stopInput()
		// the instance cannot be stopped; clean up once it returns
		go func() {
			<-exited
			_, _ = stdout.Write(endMarker)
			<-copied
			_ = stdout.Close()
			_ = ws.remove()
		}()
		return ctx.Err()
	case err = <-exited:
	}

	stopInput()
	_, _ = stdout.Write(endMarker)
	copyErr := <-copied
	_ = stdout.Close()
	defer ws.remove()

	if traceback, ok := ws.traceback(); ok {
		return &coderun.ExecError{Message: traceback}
	}
	if err != nil {
		if in.rt.log != nil {
			in.rt.log.Error("wasipy.Exec", err)
		}
		return errors.Wrap(err, "python interpreter")
	}
	return copyErr
}

// start instantiates the interpreter in a fresh store and runs the bootstrap.
func (rt *Runtime) start(dir string) error {
	store := wasmer.NewStore(wasmer.NewEngine())
	module, err := wasmer.DeserializeModule(store, rt.compiled)
	if err != nil {
		return errors.Wrap(err, "loading python interpreter")
	}

	wasiEnv, err := wasmer.NewWasiStateBuilder("python").
		Argument(guestDir+"/"+bootstrapFile).
		Environment("PYTHONHOME", guestHome).
		Environment("PYTHONDONTWRITEBYTECODE", "1").
		MapDirectory(guestDir, dir).
		MapDirectory(guestHome+"/lib", rt.libDir).
		CaptureStdout().
		CaptureStderr().
		Finalize()
	if err != nil {
		return errors.Wrap(err, "preparing wasi environment")
	}
	imports, err := wasiEnv.GenerateImportObject(store, module)
	if err != nil {
		return errors.Wrap(err, "generating wasi imports")
	}
	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return errors.Wrap(err, "instantiating python interpreter")
	}
	run, err := instance.Exports.GetWasiStartFunction()
	if err != nil {
		return errors.Wrap(err, "python interpreter has no entry point")
	}
	if _, err := run(); err != nil {
		if stderr := wasiEnv.ReadStderr(); len(stderr) > 0 {
			return fmt.Errorf("%v: %s", err, stderr)
		}
		return err
	}
	return nil
}
