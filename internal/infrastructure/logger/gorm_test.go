package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGorm(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)
	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl, _ := newObservedGorm(gormlogger.Warn)
	silent := gl.LogMode(gormlogger.Silent).(*GormLogger)

	assert.Equal(t, gormlogger.Silent, silent.logLevel)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
}

func TestGormLogger_TraceIncludesContext(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Info)
	ctx := context.WithValue(context.Background(), GroupIDKey, "group-1")
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")

	gl.Trace(ctx, time.Now(), sqlFunc("SELECT * FROM group_orders", 1), nil)

	entries := recorded.FilterMessage("SQL Query").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "group-1", fields["group_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "SELECT * FROM group_orders", fields["sql"])
}

func TestGormLogger_TraceErrors(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Warn)

	gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, recorded.Len())

	gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), errors.New("conn reset"))
	assert.Equal(t, 1, recorded.FilterMessage("SQL Error").Len())
}

func TestGormLogger_TraceSlow(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Warn, WithSlowThreshold(time.Millisecond))

	gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFunc("UPDATE group_orders", 1), nil)

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "SLOW SQL")
}

func TestGormLogger_Silent(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), errors.New("ignored"))
	gl.Info(context.Background(), "ignored %d", 1)
	gl.Error(context.Background(), "ignored")

	assert.Equal(t, 0, recorded.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

func TestGormLogger_TruncatesLongStatements(t *testing.T) {
	gl, recorded := newObservedGorm(gormlogger.Info, WithMaxSQLLength(10))

	gl.Trace(context.Background(), time.Now(), sqlFunc("INSERT INTO group_order_items VALUES (1),(2),(3)", 3), nil)

	entries := recorded.FilterMessage("SQL Query").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "INSERT INT...(truncated)", entries[0].ContextMap()["sql"])
}
