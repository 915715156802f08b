package log

import (
	"io"
	"strings"
)

type writerLogger struct {
	logger *Logger
}

// WriterIntoLogger returns an io.Writer that emits every write as an info
// line. It lets libraries that log through the standard library logger
// share our output.
func WriterIntoLogger(l *Logger) io.Writer {
	return &writerLogger{logger: l}
}

func (w *writerLogger) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
