package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/gqlrequest"
	"cms-graphql/internal/logging"
)

// GraphQLDepthLimitMiddleware rejects operations whose selection depth exceeds
// maxDepth. It reads the analysis stored by GraphQLRequestAnalysisMiddleware
// and must run after it. A non-positive maxDepth disables the check.
func GraphQLDepthLimitMiddleware(maxDepth int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxDepth <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || analysis.SelectionDepth <= maxDepth {
				next.ServeHTTP(w, r)
				return
			}

			logging.FromContext(r.Context()).Warn("graphql query too deep",
				slog.Int("depth", analysis.SelectionDepth),
				slog.Int("max_depth", maxDepth),
			)
			writeGraphQLError(w, fmt.Sprintf("Query depth %d exceeds the maximum of %d", analysis.SelectionDepth, maxDepth), gqlerrors.CodeLimitsExceeded)
		})
	}
}

// writeGraphQLError answers with a GraphQL response carrying one error and no
// data, the way the executor reports request-level failures.
func writeGraphQLError(w http.ResponseWriter, message string, code gqlerrors.Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeGraphQLErrorBody(w, message, code)
}

func writeGraphQLErrorBody(w http.ResponseWriter, message string, code gqlerrors.Code) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{
			"message":    message,
			"extensions": map[string]any{"code": string(code)},
		}},
	})
}
