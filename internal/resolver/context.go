package resolver

import (
	"context"
	"sync"
)

type requestContextKey struct{}

// requestContext is the state shared by every resolver of one GraphQL
// operation.
type requestContext struct {
	resolver *Resolver
	session  any

	mu              sync.Mutex
	totalResults    int
	maxTotalResults int
}

// WithRequest prepares ctx for executing one operation against r. The
// session is handed to access rules and hooks unchanged.
func (r *Resolver) WithRequest(ctx context.Context, session any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestContextKey{}, &requestContext{
		resolver:        r,
		session:         session,
		maxTotalResults: r.maxTotalResults,
	})
}

func requestFromContext(ctx context.Context) *requestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey{}).(*requestContext)
	return rc
}

// SessionFromContext returns the session of the operation running in ctx.
func SessionFromContext(ctx context.Context) any {
	if rc := requestFromContext(ctx); rc != nil {
		return rc.session
	}
	return nil
}

// addResults records n more items returned by this operation and reports the
// new total and whether it is within the configured ceiling.
func (rc *requestContext) addResults(n int) (int, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.totalResults += n
	return rc.totalResults, rc.maxTotalResults <= 0 || rc.totalResults <= rc.maxTotalResults
}
