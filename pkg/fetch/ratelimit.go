package fetch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces requests per host with a token bucket per hostname.
// A zero rate disables pacing.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	log      *logrus.Entry
}

// NewRateLimiter creates a RateLimiter allowing requestsPerSecond per host
func NewRateLimiter(requestsPerSecond float64, burst int, log *logrus.Entry) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) limiter(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[host]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[host] = l
	}
	return l
}

// Wait blocks until a request to host is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl.limit == rate.Inf {
		return ctx.Err()
	}
	l := rl.limiter(host)
	if rl.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		rl.log.WithFields(logrus.Fields{"host": host, "tokens": l.Tokens()}).Trace("Waiting for rate limiter")
	}
	return l.Wait(ctx)
}

// Hosts returns the number of hosts seen so far
func (rl *RateLimiter) Hosts() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
