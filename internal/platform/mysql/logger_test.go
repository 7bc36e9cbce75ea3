package mysql

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestLoggerTrace(t *testing.T) {
	query := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("error is logged", func(t *testing.T) {
		buf := captureLog(t)
		NewLogger(time.Second).Trace(context.Background(), time.Now(), query, errors.New("boom"))
		assert.Contains(t, buf.String(), `"error":"boom"`)
		assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)
	})

	t.Run("record not found is quiet", func(t *testing.T) {
		buf := captureLog(t)
		NewLogger(time.Second).Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("slow query warns", func(t *testing.T) {
		buf := captureLog(t)
		NewLogger(time.Millisecond).Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
		assert.Contains(t, buf.String(), `"level":"warn"`)
	})

	t.Run("silent", func(t *testing.T) {
		buf := captureLog(t)
		NewLogger(time.Millisecond).LogMode(logger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), query, errors.New("boom"))
		assert.Empty(t, buf.String())
	})
}
