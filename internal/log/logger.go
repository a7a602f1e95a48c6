package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface handed to the store and the conversion
// driver. It is a narrow view of a logrus entry so that callers can attach
// structured fields without depending on logrus directly.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(key string, value interface{}) Logger

	// DebugEnabled reports whether debug-level records are emitted. Some
	// callers build expensive diagnostics only when they would be shown.
	DebugEnabled() bool
}

type logrusLogger struct {
	entry *logrus.Entry
}

// Config describes the verbosity selected on the command line. The flags are
// cumulative in strength: debug implies verbose, quiet silences everything
// below error.
type Config struct {
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Level resolves the configured flags to a logrus level.
func (c Config) Level() logrus.Level {
	switch {
	case c.Debug:
		return logrus.DebugLevel
	case c.Verbose:
		return logrus.InfoLevel
	case c.Quiet:
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

// Configure sets up a logger writing plain-text records to out. The writer is
// expected to be synchronized already when it is shared with the progress
// display; see NewSyncWriter.
func Configure(out io.Writer, cfg Config) Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(cfg.Level())
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	})

	return logrusLogger{entry: logrus.NewEntry(l)}
}

func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l logrusLogger) WithField(key string, value interface{}) Logger {
	return logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l logrusLogger) DebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}

// Discard returns a logger that drops every record. Used by tests and as the
// default before Configure runs.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrusLogger{entry: logrus.NewEntry(l)}
}
