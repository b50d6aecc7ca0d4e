package httpx

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the client-side request budget.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or negative disables limiting.
	RequestsPerSecond float64
	// Burst allows short bursts above the sustained rate
	Burst int
}

// DefaultRateLimit keeps an interactive client well below typical auth
// endpoint throttles.
var DefaultRateLimit = RateLimitConfig{
	RequestsPerSecond: 5,
	Burst:             5,
}

// KeyExtractor groups outbound requests for rate limiting.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor limits per destination host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	// Cleanup old limiters periodically
	lastCleanup time.Time
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets are full, i.e. idle keys.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitTransport is an http.RoundTripper that waits for a token before
// each request. Waiting honours the request context, so a cancelled caller
// is released immediately.
type RateLimitTransport struct {
	next    http.RoundTripper
	limiter *rateLimiter
	key     KeyExtractor
}

// NewRateLimitTransport wraps next (http.DefaultTransport when nil). A nil
// keyExtractor limits per host. A disabled config returns next unchanged.
func NewRateLimitTransport(next http.RoundTripper, config RateLimitConfig, keyExtractor KeyExtractor) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if config.RequestsPerSecond <= 0 {
		return next
	}
	if config.Burst < 1 {
		config.Burst = 1
	}
	if keyExtractor == nil {
		keyExtractor = HostKeyExtractor
	}

	return &RateLimitTransport{
		next: next,
		limiter: &rateLimiter{
			rate:        rate.Limit(config.RequestsPerSecond),
			burst:       config.Burst,
			lastCleanup: time.Now(),
		},
		key: keyExtractor,
	}
}

func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.getLimiter(t.key(req)).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
