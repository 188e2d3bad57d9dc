// Package resolver executes the generated CMS API. It builds the Query and
// Mutation roots from the initialised lists and runs every operation through
// access control, hooks and the store, reporting failures as classified
// errors.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"cms-graphql/internal/adminmeta"
	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/inputresolver"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/observability"
	"cms-graphql/internal/store"
)

// Options configure a Resolver.
type Options struct {
	// MaxTotalResults caps the items every findMany of one operation may
	// return together. Zero means unlimited.
	MaxTotalResults int
	// Session extracts the caller's session from the context of an
	// operation, e.g. the claims stored by the auth middleware.
	Session func(ctx context.Context) any
	Logger  *slog.Logger
}

// Resolver runs operations for one set of lists against one store.
type Resolver struct {
	lists           *lists.Lists
	client          store.Client
	inputs          *inputresolver.Resolver
	meta            *adminmeta.Meta
	logger          *slog.Logger
	maxTotalResults int
	session         func(ctx context.Context) any
	// writes serialises persistence for backends with a single writer. It is
	// nil when the backend accepts concurrent writes.
	writes *semaphore.Weighted
}

// New creates a Resolver. The lists must have been initialised with
// FieldResolver so output fields see access control and relation accessors.
func New(ls *lists.Lists, client store.Client, opts Options) (*Resolver, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxTotalResults < 0 {
		return nil, gqlerrors.Systemf("maxTotalResults must not be negative")
	}
	meta, err := adminmeta.Build(ls)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		lists:           ls,
		client:          client,
		inputs:          inputresolver.New(ls),
		meta:            meta,
		logger:          opts.Logger,
		maxTotalResults: opts.MaxTotalResults,
		session:         opts.Session,
	}
	if !client.Provider().ConcurrentWrites {
		r.writes = semaphore.NewWeighted(1)
	}
	return r, nil
}

// Lists returns the lists the resolver serves.
func (r *Resolver) Lists() *lists.Lists {
	return r.lists
}

// AdminMeta returns the admin metadata of the lists.
func (r *Resolver) AdminMeta() *adminmeta.Meta {
	return r.meta
}

func (r *Resolver) model(list *lists.List) (store.Model, error) {
	m, err := r.client.Model(list.Key)
	if err != nil {
		return nil, gqlerrors.Systemf("%s has no storage: %v", list.Key, err)
	}
	return m, nil
}

// persist runs write while holding the write gate.
func (r *Resolver) persist(ctx context.Context, write func() (map[string]any, error)) (map[string]any, error) {
	if r.writes != nil {
		if err := r.writes.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer r.writes.Release(1)
	}
	item, err := write()
	if err != nil {
		return nil, gqlerrors.Database(err)
	}
	return item, nil
}

// observe wraps one root operation with a span, metrics and a debug log of
// failures.
func (r *Resolver) observe(ctx context.Context, list *lists.List, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, span := startResolverSpan(ctx, "cms."+operation,
		attribute.String("cms.list", list.Key),
		attribute.String("cms.operation", operation),
	)
	start := time.Now()
	result, err := fn(ctx)
	code := "ok"
	if err != nil {
		code = string(gqlerrors.CodeOf(err))
		if code == "" {
			code = "unclassified"
		}
		r.logger.DebugContext(ctx, "operation failed",
			slog.String("list", list.Key),
			slog.String("operation", operation),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	outcome := ""
	if code == string(gqlerrors.CodeAccessDenied) {
		outcome = "denied"
		if security := observability.SecurityMetricsFromContext(ctx); security != nil {
			security.RecordAccessDenied(ctx, list.Key, operation, r.session != nil && r.session(ctx) != nil)
		}
	}
	finishResolverSpan(span, err, outcome)
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordOperation(ctx, list.Key, operation, code, time.Since(start))
	}
	return result, err
}
