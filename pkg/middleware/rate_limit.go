package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/identity"
	"slotbook/pkg/logger"

	"golang.org/x/time/rate"
)

// ClientKeyFunc names the bucket a request is charged to.
type ClientKeyFunc func(r *http.Request) string

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter keeps one token bucket per client. Buckets idle for longer
// than idleAfter are dropped by a background janitor.
type UserRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	idleAfter time.Duration
	keyFunc   ClientKeyFunc
	log       *logger.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewUserRateLimiter(rps float64, burst int, keyFunc ClientKeyFunc, log *logger.Logger) *UserRateLimiter {
	if keyFunc == nil {
		keyFunc = DefaultClientKey
	}
	rl := &UserRateLimiter{
		clients:   make(map[string]*limiterEntry),
		rps:       rate.Limit(rps),
		burst:     burst,
		idleAfter: 10 * time.Minute,
		keyFunc:   keyFunc,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > rl.idleAfter {
			delete(rl.clients, key)
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow charges one request to key and reports whether it fits the budget.
func (rl *UserRateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *UserRateLimiter) allowAt(key string, now time.Time) bool {
	rl.mu.Lock()
	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func UserRateLimit(limiter *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(key) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"client", key,
					"path", r.URL.Path,
				)
				retryAfter := 1
				if limiter.rps > 0 {
					retryAfter = max(1, int(1/float64(limiter.rps)))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				_ = httputil.WriteError(w, apperrors.TooManyRequests("Rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DefaultClientKey charges authenticated requests to the user and anonymous
// ones to the remote IP.
func DefaultClientKey(r *http.Request) string {
	if userID, ok := identity.UserFromContext(r.Context()); ok {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
