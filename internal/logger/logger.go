// Package logger
package logger

import (
	"io"
	"os"
	"strings"

	"hostpulse/internal/config"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

func New(cfg *config.Config) Logger {
	return NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

func NewWithWriter(level, format string, w io.Writer) Logger {
	l := logrus.New()
	l.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func NewNop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, args ...any) {
	l.entry.WithFields(fields(args)).Error(msg)
}

func (l *logrusLogger) With(args ...any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields(args))}
}

// fields turns alternating key/value args into logrus fields. A trailing
// key without a value is kept under "!BADKEY".
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			f["!BADKEY"] = args[i]
			continue
		}
		if i+1 >= len(args) {
			f["!BADKEY"] = key
			continue
		}
		f[key] = args[i+1]
	}
	return f
}
