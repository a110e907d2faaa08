package log

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// NewPionLoggerFactory returns a logging.LoggerFactory that writes through
// the package logger, so library and application logs share one stream.
func NewPionLoggerFactory() logging.LoggerFactory {
	return &pionLoggerFactory{}
}

type pionLoggerFactory struct{}

func (f *pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{scope: scope}
}

type pionLogger struct {
	scope string
}

func (l *pionLogger) logf(level zerolog.Level, format string, args ...interface{}) {
	log.WithLevel(level).Str("scope", l.scope).Msgf(format, args...)
}

func (l *pionLogger) Trace(msg string) { l.logf(zerolog.TraceLevel, "%s", msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) {
	l.logf(zerolog.TraceLevel, format, args...)
}

func (l *pionLogger) Debug(msg string) { l.logf(zerolog.DebugLevel, "%s", msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.logf(zerolog.DebugLevel, format, args...)
}

func (l *pionLogger) Info(msg string) { l.logf(zerolog.InfoLevel, "%s", msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.logf(zerolog.InfoLevel, format, args...)
}

func (l *pionLogger) Warn(msg string) { l.logf(zerolog.WarnLevel, "%s", msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.logf(zerolog.WarnLevel, format, args...)
}

func (l *pionLogger) Error(msg string) { l.logf(zerolog.ErrorLevel, "%s", msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.logf(zerolog.ErrorLevel, format, args...)
}
