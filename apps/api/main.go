package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/trezcool/pogil/apps/api/echo"
	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/coderun/wasipy"
	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
	emailsvc "github.com/trezcool/pogil/services/email"
	logsvc "github.com/trezcool/pogil/services/logger"
	"github.com/trezcool/pogil/storage/database"
	sqlxrepos "github.com/trezcool/pogil/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	runLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "RUN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.Migrate(db.DB, "up"); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(os.Stdout, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	hub := echoapi.NewHub(logger)
	instSvc := instance.NewService(sqlxrepos.NewInstanceRepository(db), nil)
	respSvc := responses.NewService(sqlxrepos.NewResponseRepository(db), mailSvc, hub, logger)

	runners := map[string]coderun.Runner{
		string(sheet.Cpp): coderun.NewCppRunner(conf.Runner, runLogger),
	}
	if rt, err := wasipy.Load(conf.Runner.PythonWasmPath, runLogger); err != nil {
		logger.Warn("python runner disabled", err)
	} else {
		runners[string(sheet.Python)] = coderun.NewPythonRunner(rt.NewInterpreter, conf.Runner, runLogger)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan struct{}, 1)
	server := echoapi.NewServer(conf.Server.Address(), shutdown, &echoapi.Deps{
		Logger:      logger,
		Parser:      sheet.NewParser(logger),
		InstanceSvc: instSvc,
		ResponseSvc: respSvc,
		Hub:         hub,
		Runners:     runners,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		logger.Error(fmt.Sprintf("server error: %v", err), err)
		return

	case sig := <-signals:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	case <-shutdown:
		logger.Info("shutdown requested by a failing request")
	}

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}
