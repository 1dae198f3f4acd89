package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// queryLogger is the statement logging policy shared by the database bridges.
// Failures log at error, statements over the threshold at warn, and the rest
// at debug when the configured level allows it.
type queryLogger struct {
	log       *zap.Logger
	subject   string // "mongo command", "gorm query"
	threshold time.Duration
	level     zapcore.Level
}

func newQueryLogger(l *zap.Logger, subject string, slowQuerySeconds float64, level string) queryLogger {
	return queryLogger{
		log:       l,
		subject:   subject,
		threshold: time.Duration(slowQuerySeconds * float64(time.Second)),
		level:     ParseLevel(level),
	}
}

func (q queryLogger) record(ctx context.Context, elapsed time.Duration, err error, fields ...zap.Field) {
	l := WithContext(ctx, q.log)
	fields = append(fields,
		zap.Duration("elapsed", elapsed),
		zap.Float64("elapsed_ms", float64(elapsed.Nanoseconds())/1e6),
	)

	switch {
	case err != nil:
		l.Error(q.subject+" failed", append(fields, zap.Error(err))...)
	case q.threshold > 0 && elapsed > q.threshold:
		l.Warn(q.subject+" slow", append(fields, zap.Duration("threshold", q.threshold))...)
	case q.level <= zapcore.DebugLevel:
		l.Debug(q.subject, fields...)
	}
}
