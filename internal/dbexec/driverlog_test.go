package dbexec

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferedDriverLogger(min slog.Level) (*DriverLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewDriverLogger(slog.New(handler), min), &buf
}

func TestDriverLogger_FiltersBelowMinimum(t *testing.T) {
	logger, buf := newBufferedDriverLogger(slog.LevelWarn)

	logger.Debugf("pool", "1", "acquired %d", 3)
	logger.Infof("pool", "1", "connected")
	assert.Empty(t, buf.String())

	logger.Warnf("router", "2", "routing table stale for %s", "neo4j")
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "routing table stale for neo4j")
	assert.Contains(t, out, "driver_component=router")
	assert.Contains(t, out, "driver_id=2")
	assert.Contains(t, out, "component=neo4j_driver")
}

func TestDriverLogger_Error(t *testing.T) {
	logger, buf := newBufferedDriverLogger(slog.LevelDebug)

	logger.Error("bolt", "7", nil)
	assert.Empty(t, buf.String())

	logger.Error("bolt", "7", errors.New("connection reset"))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestDriverLogger_OffDropsErrors(t *testing.T) {
	logger, buf := newBufferedDriverLogger(slog.LevelError + 4)
	logger.Error("bolt", "7", errors.New("connection reset"))
	assert.Empty(t, buf.String())
}

func TestDriverLogger_MessageWithoutArgsIsNotFormatted(t *testing.T) {
	logger, buf := newBufferedDriverLogger(slog.LevelDebug)
	logger.Infof("pool", "1", "100% utilized")
	assert.Contains(t, buf.String(), "100% utilized")
}
