package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/instance"
)

var (
	errHelp          = errors.New("help provided")
	errProgramFailed = errors.New("program failed")
)

type (
	instanceCreator interface {
		CreateInstance(activityID int, studentIDs ...int) (instance.Instance, error)
	}

	commandLine struct {
		ctx context.Context
		in  io.Reader
		out io.Writer
		log core.Logger

		openDB          func() (*sqlx.DB, error)
		newInstanceRepo func(db *sqlx.DB) instanceCreator
		migrate         func(db *sql.DB, command string, args ...string) error
		pythonRunner    func() (coderun.Runner, error)
		cppRunner       func() (coderun.Runner, error)
	}
)

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprint(cli.out, `Usage:
  parse [-file SHEET]                          print the blocks of a sheet as JSON (stdin by default)
  render [-file SHEET] [-mode MODE] [-editable] [-sheet]
                                               print the HTML of a sheet
  run-python -file PROG [-key KEY] [-include A,B] [-files DIR]
                                               run a Python cell, stdin feeds input()
  run-cpp -file PROG [-key KEY] [-include A,B] [-files DIR]
                                               run a C++ cell in an interactive terminal
  migrate COMMAND [ARGS...]                    run a goose migration command (up, down, status...)
  newinstance -activity ID -students ID,ID...  start an activity instance for a group
  token -user ID [-name NAME] [-email EMAIL] [-teacher]
                                               print an API token for a user
`)
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cmd, cmdArgs := args[1], args[2:]
	switch cmd {
	case "parse":
		return cli.parseCmd(cmdArgs)
	case "render":
		return cli.renderCmd(cmdArgs)
	case "run-python":
		return cli.runCmd(cmd, cmdArgs, cli.pythonRunner, false)
	case "run-cpp":
		return cli.runCmd(cmd, cmdArgs, cli.cppRunner, true)
	case "migrate":
		if len(cmdArgs) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrateCmd(cmdArgs)
	case "newinstance":
		return cli.newInstanceCmd(cmdArgs)
	case "token":
		return cli.tokenCmd(cmdArgs)
	default:
		cli.printUsage()
		return errHelp
	}
}

// parseFlags parses args, mapping -h and usage errors to errHelp.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errHelp
	}
	return nil
}
