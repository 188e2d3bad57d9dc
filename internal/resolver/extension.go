package resolver

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"
	gqlerr "github.com/graphql-go/graphql/gqlerrors"

	"cms-graphql/internal/gqlerrors"
)

// operationExtension scopes every operation executed against the schema.
// Init gives each operation its own request context unless the caller
// already attached one. When execution finishes it copies the extensions of
// classified errors onto response errors that lost them: graphql-go drops the
// extensions of errors returned by list item thunks, which is how the *Many
// mutations report per-item failures.
type operationExtension struct {
	r *Resolver
}

var _ graphql.Extension = operationExtension{}

func (e operationExtension) Init(ctx context.Context, _ *graphql.Params) context.Context {
	if requestFromContext(ctx) != nil {
		return ctx
	}
	var session any
	if e.r.session != nil && ctx != nil {
		session = e.r.session(ctx)
	}
	return e.r.WithRequest(ctx, session)
}

func (operationExtension) Name() string { return "cmsOperation" }

func (operationExtension) ParseDidStart(ctx context.Context) (context.Context, graphql.ParseFinishFunc) {
	return ctx, func(error) {}
}

func (operationExtension) ValidationDidStart(ctx context.Context) (context.Context, graphql.ValidationFinishFunc) {
	return ctx, func([]gqlerr.FormattedError) {}
}

func (operationExtension) ExecutionDidStart(ctx context.Context) (context.Context, graphql.ExecutionFinishFunc) {
	return ctx, func(result *graphql.Result) {
		if result == nil {
			return
		}
		for i := range result.Errors {
			if result.Errors[i].Extensions != nil {
				continue
			}
			if ext := classifiedExtensions(result.Errors[i].OriginalError()); ext != nil {
				result.Errors[i].Extensions = ext
			}
		}
	}
}

func (operationExtension) ResolveFieldDidStart(ctx context.Context, _ *graphql.ResolveInfo) (context.Context, graphql.ResolveFieldFinishFunc) {
	return ctx, func(interface{}, error) {}
}

func (operationExtension) HasResult() bool { return false }

func (operationExtension) GetResult(context.Context) interface{} { return nil }

// classifiedExtensions unwraps graphql-go's error wrappers down to a
// classified error.
func classifiedExtensions(err error) map[string]interface{} {
	for depth := 0; err != nil && depth < 8; depth++ {
		var classified *gqlerrors.Error
		if errors.As(err, &classified) {
			return classified.Extensions()
		}
		switch e := err.(type) {
		case *gqlerr.Error:
			err = e.OriginalError
		case gqlerr.FormattedError:
			err = e.OriginalError()
		default:
			return nil
		}
	}
	return nil
}
