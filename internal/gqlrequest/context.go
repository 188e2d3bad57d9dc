package gqlrequest

import "context"

// ctxKey gives each stored type its own context key.
type ctxKey[T any] struct{}

func withValue[T any](ctx context.Context, value T) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey[T]{}, value)
}

func valueFrom[T any](ctx context.Context) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	value, ok := ctx.Value(ctxKey[T]{}).(T)
	return value, ok
}

// ExecMeta is what request logging and tracing know about a GraphQL request
// before it executes.
type ExecMeta struct {
	// Subject identifies the authenticated caller, empty for anonymous
	// requests.
	Subject string
	// ListsFingerprint identifies the lists configuration the request ran
	// against.
	ListsFingerprint string

	OperationName string
	OperationType string
	OperationHash string
}

// NewExecMeta copies the operation identity out of analysis, which may be nil.
func NewExecMeta(analysis *Analysis, subject, listsFingerprint string) ExecMeta {
	meta := ExecMeta{Subject: subject, ListsFingerprint: listsFingerprint}
	if analysis != nil {
		meta.OperationName = analysis.OperationName
		meta.OperationType = analysis.OperationType
		meta.OperationHash = analysis.OperationHash
	}
	return meta
}

func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	return withValue(ctx, analysis)
}

// AnalysisFromContext returns the analysis stored by WithAnalysis, or nil.
func AnalysisFromContext(ctx context.Context) *Analysis {
	analysis, _ := valueFrom[*Analysis](ctx)
	return analysis
}

func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	return withValue(ctx, meta)
}

func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	return valueFrom[ExecMeta](ctx)
}
