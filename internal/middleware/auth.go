package middleware

import (
	"context"
	"net/http"

	"github.com/dinomatic/media/internal/auth"
	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/metrics"
	"github.com/dinomatic/media/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// SubjectKey is the context key for the authenticated caller.
const SubjectKey contextKey = "subject"

// RequireAuth returns middleware that accepts either the shared API key or a
// Bearer JWT and injects the caller into the request context. Requests
// without valid credentials never reach the handler.
func RequireAuth(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, method, err := v.Check(r)
			if method != "" {
				metrics.RecordAuthAttempt(method, err == nil)
			}
			if err != nil {
				logging.WithContext(r.Context()).Debug("auth rejected",
					logging.String("method", method),
					logging.Err(err),
				)
				response.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated caller stored by RequireAuth.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(SubjectKey).(string)
	return s
}
