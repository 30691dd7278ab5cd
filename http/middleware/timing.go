package middleware

import (
	"context"
	"net/http"
	"time"
)

type startTimeKey struct{}

// TimingMiddleware stores the request start time so responses can report how
// long handling took.
func TimingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), startTimeKey{}, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestDuration returns the milliseconds since the request started, or 0
// outside TimingMiddleware.
func GetRequestDuration(ctx context.Context) int64 {
	if startTime, ok := ctx.Value(startTimeKey{}).(time.Time); ok {
		return time.Since(startTime).Milliseconds()
	}
	return 0
}

func GetRequestDurationFromRequest(r *http.Request) int64 {
	return GetRequestDuration(r.Context())
}
