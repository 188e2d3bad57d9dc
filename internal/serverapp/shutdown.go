package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cms-graphql/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack []cleanupStep

type cleanupStep struct {
	name    string
	release func(context.Context) error
}

func (s *cleanupStack) push(name string, release func(context.Context) error) {
	*s = append(*s, cleanupStep{name: name, release: release})
}

// run releases every step, newest first, even when earlier steps fail. The
// returned error joins each failure.
func (s cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		step := s[i]
		started := time.Now()
		err := step.release(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
		switch {
		case logger == nil:
		case err != nil:
			logger.Warn("cleanup failed",
				slog.String("component", step.name),
				slog.String("error", err.Error()),
			)
		default:
			logger.Info("released "+step.name, slog.Duration("elapsed", time.Since(started)))
		}
	}
	return errors.Join(errs...)
}

// Shutdown releases everything Init acquired. Only the first call does work;
// later calls return its result.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		steps := a.cleanup
		a.cleanup = nil
		a.started = false
		a.stateMu.Unlock()

		a.shutdownErr = steps.run(ctx, a.logger)
	})
	return a.shutdownErr
}
