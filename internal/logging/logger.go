// README: Structured logger (logrus) shared by the API, services and middleware.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"ridebook/internal/types"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

type Logger struct {
	entry *logrus.Entry
}

func New(cfg Config) *Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	if cfg.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	l.SetOutput(os.Stdout)
	return &Logger{entry: logrus.NewEntry(l)}
}

// Discard returns a logger that drops everything; used by tests and tools.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(l)}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) WithRide(id types.ID) *Logger {
	return l.WithField("ride_id", string(id))
}

func (l *Logger) WithDriver(id types.ID) *Logger {
	return l.WithField("driver_id", string(id))
}

func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }

func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Logger) Fatal(msg string) { l.entry.Fatal(msg) }

func (l *Logger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }
