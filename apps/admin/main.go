package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/coderun/wasipy"
	logsvc "github.com/trezcool/pogil/services/logger"
	"github.com/trezcool/pogil/storage/database"
	sqlxrepos "github.com/trezcool/pogil/storage/database/sqlx"
)

func main() {
	logger := logsvc.NewStdLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var db *sqlx.DB
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	cli := &commandLine{
		ctx: ctx,
		in:  os.Stdin,
		out: os.Stdout,
		log: logger,
		openDB: func() (*sqlx.DB, error) {
			if db != nil {
				return db, nil
			}
			var err error
			if db, err = database.Open(core.Conf); err != nil {
				return nil, err
			}
			return db, database.Ping(db.DB, 10)
		},
		newInstanceRepo: func(db *sqlx.DB) instanceCreator { return sqlxrepos.NewInstanceRepository(db) },
		migrate:         database.Migrate,
		pythonRunner: func() (coderun.Runner, error) {
			rt, err := wasipy.Load(core.Conf.Runner.PythonWasmPath, logger)
			if err != nil {
				return nil, err
			}
			return coderun.NewPythonRunner(rt.NewInterpreter, core.Conf.Runner, logger), nil
		},
		cppRunner: func() (coderun.Runner, error) {
			return coderun.NewCppRunner(core.Conf.Runner, logger), nil
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp && err != errProgramFailed {
			logger.Error(err.Error())
		}
		stop()
		os.Exit(1)
	}
}
