package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Logger sends gorm's query log to zerolog. Record-not-found is not an error
// here since repositories treat it as an empty result.
type Logger struct {
	level         logger.LogLevel
	slowThreshold time.Duration
}

func NewLogger(slowThreshold time.Duration) *Logger {
	return &Logger{level: logger.Warn, slowThreshold: slowThreshold}
}

func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *Logger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		log.Info().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		log.Warn().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		log.Error().Str("component", "gorm").Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var event *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		event = log.Error().Err(err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		event = log.Warn().Dur("threshold", l.slowThreshold)
	case l.level >= logger.Info:
		event = log.Debug()
	default:
		return
	}

	sql, rows := fc()
	event.Str("component", "gorm").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
}
