package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// WithSignal returns a context canceled by the first SIGINT or SIGTERM.
// A second signal during shutdown exits the process immediately with status 1.
// The returned stop function releases the signal handler.
func WithSignal(ctx context.Context, l *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	released := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			l.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-released:
			return
		}

		select {
		case sig := <-sigCh:
			l.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			_ = l.Sync()
			os.Exit(1)
		case <-released:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(released)
			cancel()
		})
	}
}
