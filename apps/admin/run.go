package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/pogil/core/coderun"
)

// mockable terminal hooks
var (
	isTerminalFunc = term.IsTerminal
	makeRawFunc    = term.MakeRaw
	restoreFunc    = term.Restore
)

// runCmd runs a code cell from a file. Python reads its stdin line by line;
// C++ gets the raw keystrokes of the terminal when there is one.
func (cli *commandLine) runCmd(name string, args []string, newRunner func() (coderun.Runner, error), keys bool) error {
	fs := cli.newFlagSet(name)
	file := fs.String("file", "", "program source (required)")
	key := fs.String("key", "0code1", "code response key of the cell")
	include := fs.String("include", "", "comma separated files to include, in order")
	dir := fs.String("files", "", "directory holding the activity files; updated files are written back")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		cli.printUsage()
		return errHelp
	}

	code, err := os.ReadFile(*file)
	if err != nil {
		return errors.Wrap(err, "reading program")
	}
	files, err := loadFiles(*dir)
	if err != nil {
		return err
	}
	store := coderun.NewFileStore(files)

	runner, err := newRunner()
	if err != nil {
		return errors.Wrap(err, "starting runner")
	}

	job := coderun.Job{
		Key:      *key,
		Code:     string(code),
		Include:  splitList(*include),
		Files:    store,
		Terminal: cli.out,
	}

	if keys {
		restore, err := cli.rawInput()
		if err != nil {
			return err
		}
		defer restore()
		// hide Close: the terminal must still be restored after the run
		job.Keys = struct{ io.Reader }{cli.in}
	} else {
		queue := coderun.NewInputQueue()
		defer queue.Close()
		go func() {
			_ = coderun.PipeLines(cli.ctx, cli.in, queue)
			_ = queue.Close()
		}()
		job.Stdin = queue
	}

	res := runner.Run(cli.ctx, job)
	if *dir != "" {
		if err := saveFiles(*dir, files, store); err != nil {
			return err
		}
	}
	if res.Err != nil {
		return errProgramFailed
	}
	return nil
}

// rawInput puts the CLI input in raw mode when it is a terminal.
func (cli *commandLine) rawInput() (restore func(), err error) {
	f, ok := cli.in.(*os.File)
	if !ok || !isTerminalFunc(int(f.Fd())) {
		return func() {}, nil
	}
	state, err := makeRawFunc(int(f.Fd()))
	if err != nil {
		return nil, errors.Wrap(err, "setting terminal raw mode")
	}
	return func() { _ = restoreFunc(int(f.Fd()), state) }, nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// loadFiles reads the regular files directly under dir.
func loadFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	if dir == "" {
		return files, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading files dir")
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", e.Name())
		}
		files[e.Name()] = string(b)
	}
	return files, nil
}

// saveFiles writes back the files the program created or changed.
func saveFiles(dir string, before map[string]string, store *coderun.FileStore) error {
	after, _ := store.Snapshot()
	for name, content := range after {
		if old, ok := before[name]; ok && old == content {
			continue
		}
		if filepath.Base(name) != name {
			continue // only flat names map onto the dir
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", name)
		}
	}
	return nil
}

