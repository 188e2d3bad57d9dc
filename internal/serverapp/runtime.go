package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// StopReason reports why WaitForStop returned.
type StopReason string

const (
	StopSignal      StopReason = "signal"
	StopServerError StopReason = "server_error"
)

var errServerStopped = errors.New("server stopped unexpectedly")

// Start launches the HTTP server goroutine. Calling it again returns the same
// error channel.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	switch {
	case !a.initialized:
		return nil, fmt.Errorf("app is not initialized")
	case !a.started:
		a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
		a.started = true
	}
	return a.serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server fails. A nil
// serverErrors falls back to the channel returned by Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (StopReason, error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("nothing to wait on: stop and serverErrors are both nil")
	}

	// A nil channel never becomes ready, so one select covers every case.
	select {
	case err := <-serverErrors:
		if err == nil {
			err = errServerStopped
		} else {
			err = fmt.Errorf("server failed: %w", err)
		}
		return StopServerError, err
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return StopSignal, nil
	}
}
