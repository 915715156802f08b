// Package log implements structured, leveled logging on top of go-kit.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Frames between the caller of Debug/Info/Warn/Error and the go-kit
// Log call that evaluates the caller valuer.
const defaultCallerUnwind = 5

// Logger is a structured logger bound to a module name.
type Logger struct {
	base    log.Logger
	keyvals []interface{}
	level   Level
	module  string
	unwind  int
}

// NewDefaultLogger returns a JSON logger at info level writing to stdout.
// Commands should prefer RootLogger() from package `cmd/common`.
func NewDefaultLogger(module string) *Logger {
	logger, err := NewLogger(module, os.Stdout, FmtJSON, LevelInfo)
	if err != nil {
		// Only an unknown format makes NewLogger fail.
		panic(err)
	}
	return logger
}

// NewLogger creates a logger writing lines in the given format to w.
func NewLogger(module string, w io.Writer, format Format, lvl Level) (*Logger, error) {
	var base log.Logger
	switch format {
	case FmtLogfmt:
		base = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FmtJSON:
		base = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("log: unsupported log format: %v", format)
	}

	return &Logger{
		base:   base,
		level:  lvl,
		module: module,
		unwind: defaultCallerUnwind,
	}, nil
}

func (l *Logger) emit(leveled func(log.Logger) log.Logger, msg string, keyvals []interface{}) {
	logger := log.WithPrefix(l.base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(l.unwind))
	if len(l.keyvals) > 0 {
		logger = log.With(logger, l.keyvals...)
	}
	keyvals = append([]interface{}{"module", l.module, "msg", msg}, keyvals...)
	_ = leveled(logger).Log(keyvals...)
}

// Debug logs msg and the key/value pairs at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.emit(level.Debug, msg, keyvals)
}

// Info logs msg and the key/value pairs at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.emit(level.Info, msg, keyvals)
}

// Warn logs msg and the key/value pairs at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.emit(level.Warn, msg, keyvals)
}

// Error logs msg and the key/value pairs at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.emit(level.Error, msg, keyvals)
}

func (l *Logger) clone() *Logger {
	c := *l
	c.keyvals = append([]interface{}{}, l.keyvals...)
	return &c
}

// With returns a copy of the logger that adds keyvals to every line.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	c := l.clone()
	c.keyvals = append(c.keyvals, keyvals...)
	return c
}

// WithModule returns a copy of the logger reporting under module.
func (l *Logger) WithModule(module string) *Logger {
	c := l.clone()
	c.module = module
	return c
}

// WithChain is shorthand for With("chain", chain).
func (l *Logger) WithChain(chain string) *Logger {
	return l.With("chain", chain)
}

// WithCallerUnwind returns a copy of the logger that reports the caller
// unwind frames above Debug/Info/Warn/Error. Used when the logger sits
// behind another logging API.
func (l *Logger) WithCallerUnwind(unwind int) *Logger {
	c := l.clone()
	c.unwind = unwind
	return c
}

// Level returns the minimum level that is written.
func (l *Logger) Level() Level {
	return l.level
}
