package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/pogil/core"
)

// RollbarLogger reports entries to Rollbar and mirrors them to a std logger.
// Entries of an acting user (a core.UserID arg) are attributed to that person.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger configures the global Rollbar client. Reporting stays off
// in debug or without a token.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.DEBUG, "DEBUG", msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.INFO, "INFO", msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.WARN, "WARN", msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.ERR, "ERROR", msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, "FATAL", msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}

func (l RollbarLogger) report(level, name, msg string, args []interface{}) {
	rollbar.Log(level, rollbarArgs(msg, args)...)
	printEntry(l.std, name, msg, args)
}

// rollbarArgs turns an entry into rollbar.Log args: errors and maps pass
// through, the first core.UserID sets the person.
func rollbarArgs(msg string, args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	var person bool
	for _, arg := range args {
		id, ok := arg.(core.UserID)
		if !ok {
			out = append(out, arg)
			continue
		}
		if !person {
			rollbar.SetPerson(string(id), "", "")
			person = true
		}
	}
	if !person {
		rollbar.ClearPerson()
	}
	return out
}
