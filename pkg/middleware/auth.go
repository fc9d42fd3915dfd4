package middleware

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"rentpay/pkg/logger"
	"rentpay/pkg/model"
	"rentpay/pkg/sanitizer"
)

const (
	CallerKey contextKey = "caller"

	UserIDHeader    = "X-User-ID"
	UserEmailHeader = "X-User-Email"
)

// Authentication reads the caller identity asserted by the upstream auth proxy
// and rejects requests that carry none.
func Authentication(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := extractCaller(r)
			if !ok {
				log.Warn("Unauthenticated request rejected",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeJSONError(w, http.StatusUnauthorized, `{"error":"Authentication required","code":"UNAUTHORIZED"}`)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func extractCaller(r *http.Request) (model.Caller, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" || len(userID) > 128 {
		return model.Caller{}, false
	}

	email := sanitizer.NormalizeEmail(r.Header.Get(UserEmailHeader))
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return model.Caller{}, false
		}
	}

	return model.Caller{UserID: userID, Email: email}, true
}

func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

func CallerFromContext(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(model.Caller)
	return caller, ok && !caller.IsZero()
}
