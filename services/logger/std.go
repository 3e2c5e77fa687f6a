package logsvc

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/trezcool/pogil/core"
)

// StdLogger writes entries to a std logger only (CLI, local runs).
type StdLogger struct {
	std *log.Logger
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std}
}

func (l StdLogger) Debug(msg string, args ...interface{}) { printEntry(l.std, "DEBUG", msg, args) }
func (l StdLogger) Info(msg string, args ...interface{})  { printEntry(l.std, "INFO", msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{})  { printEntry(l.std, "WARN", msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { printEntry(l.std, "ERROR", msg, args) }

func (l StdLogger) Fatal(msg string, args ...interface{}) {
	printEntry(l.std, "FATAL", msg, args)
	l.std.Fatal(msg)
}

// Nop returns a logger discarding everything.
func Nop() core.Logger {
	return NewStdLogger(log.New(io.Discard, "", 0))
}

// printEntry writes "LEVEL msg k=v ... err" on one line; maps are flattened
// in key order.
func printEntry(std *log.Logger, level, msg string, args []interface{}) {
	var sb strings.Builder
	sb.WriteString(level)
	sb.WriteByte(' ')
	sb.WriteString(msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, " %s=%v", k, a[k])
			}
		case core.UserID:
			fmt.Fprintf(&sb, " user=%s", string(a))
		case error:
			fmt.Fprintf(&sb, " error=%q", a.Error())
		default:
			fmt.Fprintf(&sb, " %+v", a)
		}
	}
	std.Println(sb.String())
}
