package middleware

import (
	"log/slog"
	"net/http"

	"cms-graphql/internal/gqlrequest"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"
	"cms-graphql/internal/schemarefresh"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores derived metadata in request context for downstream middleware.
// It must run after authentication so the subject is known.
func GraphQLRequestAnalysisMiddleware(manager *schemarefresh.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			var subject, fingerprint string
			if auth, ok := AuthFromContext(ctx); ok {
				subject = auth.Subject
			}
			if manager != nil {
				if snapshot := manager.CurrentSnapshot(); snapshot != nil {
					fingerprint = snapshot.Fingerprint
				}
			}
			meta := gqlrequest.NewExecMeta(analysis, subject, fingerprint)
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			logger := logging.FromContext(ctx)
			logFields := observability.GraphQLLogFields(ctx, analysis, meta)
			if len(logFields) > 0 {
				ctx = logging.WithLogger(ctx, logger.WithFields(logFields...))
			}
			if analysis != nil && analysis.ParseError != nil {
				logging.FromContext(ctx).Debug("graphql request did not parse",
					slog.String("error", analysis.ParseError.Error()),
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
