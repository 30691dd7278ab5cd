// Package middleware holds request throttling shared by the services.
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/leeforge/moneykeeper/http/responder"
	"github.com/leeforge/moneykeeper/logging"
	"go.uber.org/zap"
)

// Counter increments a windowed counter, e.g. redis_client.Pool.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimitConfig allows Limit requests per Window for one client.
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit" json:"limit" yaml:"limit" default:"10"`
	Window time.Duration `mapstructure:"window" json:"window" yaml:"window" default:"1m"`
}

// RateLimiter is a fixed-window limiter keyed by client address and route name.
type RateLimiter struct {
	name    string
	counter Counter
	config  RateLimitConfig
	logger  logging.Logger
}

func NewRateLimiter(name string, counter Counter, config RateLimitConfig, logger logging.Logger) *RateLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &RateLimiter{name: name, counter: counter, config: config, logger: logger}
}

// Middleware rejects requests above the limit with 429. When the counter is
// unavailable requests pass through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.Limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("rate:%s:%s", rl.name, clientAddr(r))
		count, err := rl.counter.Incr(r.Context(), key, rl.config.Window)
		if err != nil {
			logging.WithContext(rl.logger, r.Context()).Warn("rate_limit.unavailable",
				zap.String("limiter", rl.name), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		remaining := int64(rl.config.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.config.Limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			responder.TooManyRequests(w, r, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
