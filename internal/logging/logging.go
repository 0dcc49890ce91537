// Package logging provides the single process-wide logger used by every
// other package in this module. It is initialized once by Init and read
// thereafter through L(); nothing else touches the underlying charmbracelet
// logger directly.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	once   sync.Once
	global *log.Logger
)

// Init configures the global logger. Calling it more than once has no
// effect beyond the first call — logging is global mutable state by
// design, not re-initialized mid-run.
func Init(level string, color bool) {
	once.Do(func() {
		opts := log.Options{
			ReportTimestamp: true,
			ReportCaller:    false,
		}
		global = log.NewWithOptions(os.Stderr, opts)
		if !color {
			global.SetStyles(log.DefaultStyles())
		}
		global.SetLevel(parseLevel(level))
	})
}

// L returns the global logger, initializing it from the environment with
// sane defaults if Init was never called.
func L() *log.Logger {
	if global == nil {
		Init(os.Getenv("PROTEUS_LOG_LEVEL"), os.Getenv("PROTEUS_LOG_COLOR") != "0")
	}
	return global
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	case "":
		return log.InfoLevel
	default:
		return log.InfoLevel
	}
}
