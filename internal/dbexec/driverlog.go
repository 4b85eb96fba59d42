package dbexec

import (
	"context"
	"fmt"
	"log/slog"

	neo4jlog "github.com/neo4j/neo4j-go-driver/v5/neo4j/log"
)

// DriverLogger forwards driver diagnostics to slog. Messages below the
// minimum level are dropped before formatting.
type DriverLogger struct {
	logger *slog.Logger
	min    slog.Level
}

var _ neo4jlog.Logger = (*DriverLogger)(nil)

// NewDriverLogger returns a driver logger writing to logger at or above min.
func NewDriverLogger(logger *slog.Logger, min slog.Level) *DriverLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriverLogger{logger: logger.With(slog.String("component", "neo4j_driver")), min: min}
}

func (l *DriverLogger) Error(name string, id string, err error) {
	if !l.enabled(slog.LevelError) || err == nil {
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelError, err.Error(), l.attrs(name, id)...)
}

func (l *DriverLogger) Warnf(name string, id string, msg string, args ...any) {
	l.logf(slog.LevelWarn, name, id, msg, args)
}

func (l *DriverLogger) Infof(name string, id string, msg string, args ...any) {
	l.logf(slog.LevelInfo, name, id, msg, args)
}

func (l *DriverLogger) Debugf(name string, id string, msg string, args ...any) {
	l.logf(slog.LevelDebug, name, id, msg, args)
}

func (l *DriverLogger) logf(level slog.Level, name, id, msg string, args []any) {
	if !l.enabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs(name, id)...)
}

func (l *DriverLogger) enabled(level slog.Level) bool {
	return level >= l.min && l.logger.Enabled(context.Background(), level)
}

func (l *DriverLogger) attrs(name, id string) []slog.Attr {
	return []slog.Attr{slog.String("driver_component", name), slog.String("driver_id", id)}
}
