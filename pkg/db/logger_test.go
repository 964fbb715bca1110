package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func newObservedLogger(level logger.LogLevel) (*ZapGormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewZapGormLogger(zap.New(core), level, true), logs
}

func TestTraceLogsQueryErrors(t *testing.T) {
	l, logs := newObservedLogger(logger.Warn)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "UPDATE eco_points SET total_points = total_points + 5", 0
	}, errors.New("connection reset"))

	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 1)
	require.Equal(t, "connection reset", entries[0].ContextMap()["error"])
}

func TestTraceIgnoresRecordNotFound(t *testing.T) {
	l, logs := newObservedLogger(logger.Warn)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM users", 0
	}, logger.ErrRecordNotFound)

	require.Zero(t, logs.Len())
}

func TestTraceReportsSlowQueries(t *testing.T) {
	l, logs := newObservedLogger(logger.Warn)
	l.SlowThreshold = time.Millisecond

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT COUNT(*) FROM users", 1
	}, nil)

	require.Equal(t, 1, logs.FilterMessage("gorm.slow_query").Len())
}

func TestTraceSilent(t *testing.T) {
	l, logs := newObservedLogger(logger.Silent)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, errors.New("boom"))

	require.Zero(t, logs.Len())
}
