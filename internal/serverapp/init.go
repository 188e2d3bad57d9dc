package serverapp

import "context"

// Init acquires runtime resources in order: telemetry, the store backend and
// schema manager, then the HTTP stack. A failure releases whatever was
// acquired so far. Init is a no-op once it has succeeded.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	done := a.initialized
	a.stateMu.Unlock()
	if done {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cleanup cleanupStack
	committed := false
	defer func() {
		if !committed {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	tel, err := a.initTelemetry(&cleanup)
	if err != nil {
		return err
	}
	b, manager, err := a.initStore(ctx, &cleanup, tel.schemaRefreshMetrics)
	if err != nil {
		return err
	}
	if err := a.initHTTP(&cleanup, tel, b, manager); err != nil {
		return err
	}

	a.stateMu.Lock()
	a.tel = tel
	a.backend = b
	a.manager = manager
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	committed = true
	return nil
}
