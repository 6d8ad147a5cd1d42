// Package log is the logging facade of the service. It wraps a single
// zerolog logger and exposes printf-style and key/value helpers so the rest
// of the code base never imports zerolog directly.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"

	// logTestWriterName is the special output name used by tests to write
	// into logTestWriter.
	logTestWriterName = "log_test_writer"
	logTimeFormat     = "2006-01-02T15:04:05.000Z07:00"
)

var (
	log      zerolog.Logger
	logLevel = LogLevelInfo

	// panicOnInvalidChars makes the logger panic when a log line contains
	// invalid UTF-8, so tests catch binary data printed with %s.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"

	logTestWriter io.Writer
)

func init() {
	Init(LogLevelInfo, "stdout", nil)
}

// invalidCharChecker wraps a writer and panics on invalid UTF-8 input.
type invalidCharChecker struct {
	w io.Writer
}

func (c *invalidCharChecker) Write(p []byte) (int, error) {
	// zerolog escapes invalid UTF-8 as the replacement character
	if !utf8.Valid(p) || bytes.Contains(p, []byte(`\ufffd`)) {
		panic(fmt.Sprintf("log line with invalid chars: %q", p))
	}
	return c.w.Write(p)
}

// errorLevelWriter only forwards error (and above) entries.
type errorLevelWriter struct {
	io.Writer
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	return w.Write(p)
}

// Init configures the global logger. Output can be "stdout", "stderr" or a
// file path. If errorOutput is not nil, error entries are also written there.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: logTimeFormat}
	case "stderr":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logTimeFormat}
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	if panicOnInvalidChars {
		out = &invalidCharChecker{w: out}
	}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, &errorLevelWriter{errorOutput})
	}
	zerolog.TimeFieldFormat = logTimeFormat
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	log = zerolog.New(out).With().Timestamp().Caller().Logger()

	switch strings.ToLower(level) {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	case LogLevelFatal:
		log = log.Level(zerolog.FatalLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	logLevel = strings.ToLower(level)
	log.Debug().Msgf("logger construction succeeded at level %s with output %s", level, output)
}

// Logger returns the underlying zerolog logger, for libraries that accept one.
func Logger() *zerolog.Logger {
	return &log
}

// Level returns the current log level.
func Level() string {
	return logLevel
}

func Debug(args ...any) {
	log.Debug().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Info(args ...any) {
	log.Info().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Warn(args ...any) {
	log.Warn().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Error(args ...any) {
	log.Error().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

func Fatal(args ...any) {
	log.Fatal().CallerSkipFrame(1).Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
}

func Debugf(template string, args ...any) {
	log.Debug().CallerSkipFrame(1).Msgf(template, args...)
}

func Infof(template string, args ...any) {
	log.Info().CallerSkipFrame(1).Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	log.Warn().CallerSkipFrame(1).Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	log.Error().CallerSkipFrame(1).Msgf(template, args...)
}

func Fatalf(template string, args ...any) {
	Fatal(fmt.Sprintf(template, args...))
}

// Debugw logs a message with key/value pairs.
func Debugw(msg string, keyvalues ...any) {
	log.Debug().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Infow logs a message with key/value pairs.
func Infow(msg string, keyvalues ...any) {
	log.Info().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Warnw logs a message with key/value pairs.
func Warnw(msg string, keyvalues ...any) {
	log.Warn().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Errorw logs an error with a message.
func Errorw(err error, msg string) {
	log.Error().CallerSkipFrame(1).Err(err).Msg(msg)
}

// Since returns the elapsed time in milliseconds, handy as a log field.
func Since(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}
