package logger

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/event"
	"go.uber.org/zap"
)

// MongoMonitor bridges mongo-driver command events to zap
type MongoMonitor struct {
	q queryLogger
}

// NewMongoMonitor creates a command monitor logging at the given level.
// Commands slower than slowQuerySeconds are logged as warnings regardless of level.
func NewMongoMonitor(zapLogger *zap.Logger, slowQuerySeconds float64, logLevel string) *MongoMonitor {
	return &MongoMonitor{q: newQueryLogger(zapLogger, "mongo command", slowQuerySeconds, logLevel)}
}

// CommandMonitor returns the driver hook to pass to options.Client().SetMonitor
func (m *MongoMonitor) CommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, e *event.CommandSucceededEvent) {
			m.q.record(ctx, e.Duration, nil, commandFields(e.CommandFinishedEvent)...)
		},
		Failed: func(ctx context.Context, e *event.CommandFailedEvent) {
			m.q.record(ctx, e.Duration, errors.New(e.Failure), commandFields(e.CommandFinishedEvent)...)
		},
	}
}

func commandFields(e event.CommandFinishedEvent) []zap.Field {
	return []zap.Field{
		zap.String("command", e.CommandName),
		zap.String("database", e.DatabaseName),
		zap.Int64("driver_request_id", e.RequestID),
	}
}
