package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Inserts carry whole user documents, so logged statements are capped.
const maxSQLLength = 512

// GormLogger adapts zap to gormlogger.Interface
type GormLogger struct {
	q     queryLogger
	level gormlogger.LogLevel
}

// NewGormLogger creates a GORM logger. The zap level name selects the GORM
// level; statements slower than slowQuerySeconds are logged as warnings.
func NewGormLogger(zapLogger *zap.Logger, slowQuerySeconds float64, logLevel string) *GormLogger {
	level := gormlogger.Warn
	switch {
	case logLevel == "silent":
		level = gormlogger.Silent
	case ParseLevel(logLevel) <= zapcore.InfoLevel:
		level = gormlogger.Info
	case ParseLevel(logLevel) >= zapcore.ErrorLevel:
		level = gormlogger.Error
	}

	return &GormLogger{
		q:     newQueryLogger(zapLogger, "gorm query", slowQuerySeconds, logLevel),
		level: level,
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		WithContext(ctx, l.q.log).Info(fmt.Sprintf(msg, data...))
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		WithContext(ctx, l.q.log).Warn(fmt.Sprintf(msg, data...))
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		WithContext(ctx, l.q.log).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace implements gormlogger.Interface. A missing record is a lookup miss and
// is not logged as a failure.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = nil
	}
	if err == nil && l.level < gormlogger.Warn {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{zap.Int64("rows", rows)}
	if len(sql) > maxSQLLength {
		sql = sql[:maxSQLLength] + "..."
		fields = append(fields, zap.Bool("sql_truncated", true))
	}
	fields = append(fields, zap.String("sql", sql))

	l.q.record(ctx, time.Since(begin), err, fields...)
}
