package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"rentpay/pkg/logger"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CallerRateLimiter keeps one token bucket per authenticated caller.
type CallerRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	log      *logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCallerRateLimiter allows `requests` per `window` with bursts up to `requests`.
func NewCallerRateLimiter(requests int, window time.Duration, log *logger.Logger) *CallerRateLimiter {
	rl := &CallerRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		idleTTL:  max(window, time.Minute) * 2,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *CallerRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, entry := range rl.limiters {
				if time.Since(entry.lastSeen) > rl.idleTTL {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *CallerRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *CallerRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// CallerRateLimit must run after Authentication so the caller is known.
func CallerRateLimit(limiter *CallerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(caller.UserID) {
				limiter.reject(w, r, "user_id", caller.UserID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddrRateLimit buckets unauthenticated requests by remote IP.
func ClientAddrRateLimit(limiter *CallerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if !limiter.Allow("addr:" + addr) {
				limiter.reject(w, r, "remote_addr", addr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *CallerRateLimiter) reject(w http.ResponseWriter, r *http.Request, key, value string) {
	rl.log.Warn("Rate limit exceeded",
		"request_id", RequestIDFromContext(r.Context()),
		key, value,
		"path", r.URL.Path,
	)
	w.Header().Set("Retry-After", "1")
	writeJSONError(w, http.StatusTooManyRequests, `{"error":"Rate limit exceeded","code":"TOO_MANY_REQUESTS"}`)
}
