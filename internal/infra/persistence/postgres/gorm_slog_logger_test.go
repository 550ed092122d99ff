package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
)

func newBufferedGormLogger(t *testing.T, debug bool) (logger.Interface, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := &config.Config{}
	cfg.Env.Debug = debug

	return newGormSlogLogger(base, cfg), &buf
}

func TestGormSlogLogger_TraceUsesRequestLogger(t *testing.T) {
	l, buf := newBufferedGormLogger(t, true)

	reqLogger := slog.New(slog.NewJSONHandler(buf, nil)).With(slog.String("request_id", "req-1"))
	ctx := deliverycontext.WithLogger(context.Background(), reqLogger)

	l.Trace(ctx, time.Now(), func() (string, int64) {
		return `SELECT * FROM "accounts" WHERE identifier = $1`, 1
	}, nil)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "GORM query", record["msg"])
	assert.Equal(t, "req-1", record["request_id"])
}

func TestGormSlogLogger_IgnoresRecordNotFound(t *testing.T) {
	l, buf := newBufferedGormLogger(t, false)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 0
	}, gorm.ErrRecordNotFound)

	assert.Empty(t, buf.String())
}

func TestGormSlogLogger_LogsErrors(t *testing.T) {
	l, buf := newBufferedGormLogger(t, false)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "INSERT INTO accounts", 0
	}, assert.AnError)

	assert.Contains(t, buf.String(), "GORM query failed")
	assert.Contains(t, buf.String(), assert.AnError.Error())
}

func TestGormSlogLogger_ParamsFilterDropsValues(t *testing.T) {
	l, _ := newBufferedGormLogger(t, false)

	filter, ok := l.(gorm.ParamsFilter)
	require.True(t, ok)

	sql, params := filter.ParamsFilter(context.Background(), "INSERT ... VALUES ($1,$2)", "alice", "$argon2id$secret")
	assert.Equal(t, "INSERT ... VALUES ($1,$2)", sql)
	assert.Nil(t, params)
}
