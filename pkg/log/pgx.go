package log

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
)

// PgxLogrusAdapter implements tracelog.Logger for the seed database pool
type PgxLogrusAdapter struct {
	entry *logrus.Entry
}

// NewPgxLogrusAdapter creates a new adapter
func NewPgxLogrusAdapter(entry *logrus.Entry) *PgxLogrusAdapter {
	return &PgxLogrusAdapter{entry: entry}
}

// Log implements tracelog.Logger
func (l *PgxLogrusAdapter) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	entry := l.entry.WithFields(logrus.Fields(data))
	switch level {
	case tracelog.LogLevelError:
		entry.Error(msg)
	case tracelog.LogLevelWarn:
		entry.Warn(msg)
	case tracelog.LogLevelInfo:
		entry.Debug(msg)
	default:
		entry.Trace(msg)
	}
}

// PgxTraceLevel maps the logrus level of the application onto the tracelog level
func PgxTraceLevel(level logrus.Level) tracelog.LogLevel {
	switch {
	case level >= logrus.TraceLevel:
		return tracelog.LogLevelTrace
	case level >= logrus.DebugLevel:
		return tracelog.LogLevelInfo
	case level >= logrus.WarnLevel:
		return tracelog.LogLevelWarn
	default:
		return tracelog.LogLevelError
	}
}
