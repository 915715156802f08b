package log

import (
	"fmt"
	"strings"
)

// Format selects the line encoding. It implements pflag.Value.
type Format uint

const (
	// FmtLogfmt writes logfmt lines.
	FmtLogfmt Format = iota
	// FmtJSON writes one JSON object per line.
	FmtJSON
)

func (f *Format) String() string {
	switch *f {
	case FmtLogfmt:
		return "logfmt"
	case FmtJSON:
		return "JSON"
	}
	panic("log: unsupported format")
}

// Set parses s case-insensitively.
func (f *Format) Set(s string) error {
	switch strings.ToLower(s) {
	case "logfmt":
		*f = FmtLogfmt
	case "json":
		*f = FmtJSON
	default:
		return fmt.Errorf("log: invalid log format: '%s'", s)
	}
	return nil
}

func (f *Format) Type() string {
	return "[logfmt,JSON]"
}

// Level is the minimum severity written. It implements pflag.Value.
type Level uint

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l *Level) String() string {
	name, ok := levelNames[*l]
	if !ok {
		panic("log: unsupported log level")
	}
	return name
}

// Set parses s case-insensitively.
func (l *Level) Set(s string) error {
	for lvl, name := range levelNames {
		if strings.EqualFold(name, s) {
			*l = lvl
			return nil
		}
	}
	return fmt.Errorf("log: invalid log level: '%s'", s)
}

func (l *Level) Type() string {
	return "[DEBUG,INFO,WARN,ERROR]"
}
