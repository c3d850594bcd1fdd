package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"estate-graphql/internal/logging"
	"estate-graphql/internal/observability"
)

// GraphQLMetricsMiddleware records request metrics for GraphQL POSTs and
// places metrics in the request context for resolvers and loaders.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads are GETs.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)
			start := time.Now()

			operationType := "unknown"
			summary := summarizeOperation(readGraphQLRequest(r))
			if summary != nil {
				operationType = summary.operationType
				metrics.RecordQueryDepth(ctx, int64(summary.depth), operationType)
				logger := logging.FromContext(ctx).WithFields(
					slog.String("operation_type", summary.operationType),
					slog.String("operation_name", summary.operationName),
					slog.String("root_fields", strings.Join(summary.rootFields, ",")),
				)
				ctx = logging.WithLogger(ctx, logger)
			}

			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			hasErrors := wrapped.statusCode >= 400 || responseHasGraphQLErrors(wrapped.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

// metricsResponseWriter captures the status code and body.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       bytes.Buffer
}

func (w *metricsResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func responseHasGraphQLErrors(body []byte) bool {
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
