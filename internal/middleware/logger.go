// Package middleware provides reusable HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/metrics"
)

// wrappedWriter captures the status code and body size written by downstream handlers.
type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func (rw *wrappedWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *wrappedWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// Logger logs method, path, status code, size and duration for every request
// and records it in the HTTP metrics. It attaches a request-scoped logger
// carrying chi's request ID, so it must run after chiMiddleware.RequestID.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := chiMiddleware.GetReqID(ctx); id != "" {
			ctx = logging.WithRequestID(ctx, id)
			r = r.WithContext(ctx)
		}

		ww := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, routePattern(r), ww.statusCode, duration)
		logging.WithContext(ctx).Info("request completed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.statusCode),
			logging.Int64("size", ww.size),
			logging.Duration("duration", duration),
		)
	})
}

// routePattern keeps metric labels bounded: the matched chi pattern, never the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
