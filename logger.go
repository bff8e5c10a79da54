package auth

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// NewLogger builds the service logger. format is one of json, pretty or
// console and level one of trace, debug, info, warn, error.
func NewLogger(name, level, format string) *glog.BaseLogger {
	return newLogger(os.Stdout, name, level, format)
}

func newLogger(w io.Writer, name, level, format string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerType(strings.ToLower(strings.TrimSpace(format))),
		glog.WithLevel(strings.TrimSpace(level)),
		glog.WithName(name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// ResolveLogger returns the logger registered under name. The provider wins
// over logger, and a no-op logger is used when neither is set.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	return glog.Resolve(name, provider, logger)
}

var (
	fallbackOnce   sync.Once
	fallbackLogger *glog.BaseLogger
)

// defaultLogger is used by components built without a logger.
func defaultLogger() Logger {
	fallbackOnce.Do(func() {
		fallbackLogger = newFallbackLogger(os.Stdout)
	})
	return fallbackLogger
}

// newFallbackLogger writes logfmt lines and panics on Fatal instead of
// exiting, since it runs inside library code.
func newFallbackLogger(w io.Writer) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerTypeConsole(),
		glog.WithName("auth"),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
		glog.WithFatalBehavior(glog.FatalBehaviorPanic),
	)
}
