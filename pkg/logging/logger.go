package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
)

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end of
// a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. A sublogger shares its root
// logger's level and output, which can both be adjusted at runtime (e.g. in
// response to the --log-level daemon flag). It is safe for concurrent usage.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
	// level is shared by a root logger and all of its subloggers.
	level *atomic.Int32
	// output is the underlying standard library logger that a root logger
	// and all of its subloggers write through.
	output *log.Logger
}

// NewLogger creates a new root logger at the specified level, writing to the
// specified writer.
func NewLogger(level Level, writer io.Writer) *Logger {
	l := &atomic.Int32{}
	l.Store(int32(level))
	return &Logger{level: l, output: log.New(writer, "", log.LstdFlags)}
}

// RootLogger is the default root logger, writing to standard error at
// LevelInfo. Daemon and CLI entry points adjust its level via SetLevel.
var RootLogger = NewLogger(LevelInfo, os.Stderr)

// SetLevel adjusts the level shared by this logger and all of its relatives
// (ancestors and descendants created via Sublogger).
func (l *Logger) SetLevel(level Level) {
	if l != nil {
		l.level.Store(int32(level))
	}
}

func (l *Logger) currentLevel() Level {
	if l == nil || l.level == nil {
		return LevelDisabled
	}
	return Level(l.level.Load())
}

// Sublogger creates a new sublogger with the specified name, sharing this
// logger's level and output.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix, level: l.level, output: l.output}
}

func (l *Logger) log(level Level, line string) {
	if l == nil || l.currentLevel() < level {
		return
	}
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	l.output.Output(3, line)
}

// Error logs at LevelError.
func (l *Logger) Error(v ...interface{}) { l.log(LevelError, color.RedString("%s", fmt.Sprint(v...))) }

// Errorf logs at LevelError with fmt.Printf semantics.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log(LevelError, color.RedString("%s", fmt.Sprintf(format, v...)))
}

// Warn logs at LevelWarn.
func (l *Logger) Warn(v ...interface{}) {
	l.log(LevelWarn, color.YellowString("%s", fmt.Sprint(v...)))
}

// Warnf logs at LevelWarn with fmt.Printf semantics.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.log(LevelWarn, color.YellowString("%s", fmt.Sprintf(format, v...)))
}

// Info logs at LevelInfo.
func (l *Logger) Info(v ...interface{}) { l.log(LevelInfo, fmt.Sprint(v...)) }

// Infof logs at LevelInfo with fmt.Printf semantics.
func (l *Logger) Infof(format string, v ...interface{}) { l.log(LevelInfo, fmt.Sprintf(format, v...)) }

// Debug logs at LevelDebug.
func (l *Logger) Debug(v ...interface{}) { l.log(LevelDebug, fmt.Sprint(v...)) }

// Debugf logs at LevelDebug with fmt.Printf semantics.
func (l *Logger) Debugf(format string, v ...interface{}) { l.log(LevelDebug, fmt.Sprintf(format, v...)) }

// Writer returns an io.Writer that logs each line at LevelInfo.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return io.Discard
	}
	return &writer{callback: func(s string) { l.Info(s) }}
}
