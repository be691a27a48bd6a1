package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

type hostSlot struct {
	sem      *semaphore.Weighted
	holders  int64     // held + waiting permits
	lastUsed time.Time // zero until the first release
}

// HostLimiter caps the number of requests in flight per host.
// It complements RateLimiter, which only spaces request starts.
type HostLimiter struct {
	mu    sync.Mutex
	slots map[string]*hostSlot
	max   int64
	log   *logrus.Entry
}

// NewHostLimiter allows maxPerHost concurrent requests to each host.
// A value <= 0 returns nil, which the Fetcher treats as unlimited.
func NewHostLimiter(maxPerHost int, log *logrus.Entry) *HostLimiter {
	if maxPerHost <= 0 {
		return nil
	}
	return &HostLimiter{
		slots: make(map[string]*hostSlot),
		max:   int64(maxPerHost),
		log:   log.WithField("component", "host_limiter"),
	}
}

// Acquire blocks until host has a free slot or ctx is done.
// The returned func releases the slot and must be called exactly once.
func (hl *HostLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	hl.mu.Lock()
	slot, ok := hl.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(hl.max)}
		hl.slots[host] = slot
		hl.log.WithFields(logrus.Fields{"host": host, "limit": hl.max}).Debug("Tracking new host")
	}
	slot.holders++
	hl.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		hl.mu.Lock()
		slot.holders--
		hl.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			hl.mu.Lock()
			slot.holders--
			slot.lastUsed = time.Now()
			hl.mu.Unlock()
			slot.sem.Release(1)
		})
	}, nil
}

// RunEviction drops hosts idle for longer than interval until ctx is done
func (hl *HostLimiter) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hl.evictIdle(interval)
		case <-ctx.Done():
			return
		}
	}
}

func (hl *HostLimiter) evictIdle(maxIdle time.Duration) int {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	evicted := 0
	for host, slot := range hl.slots {
		if slot.holders == 0 && !slot.lastUsed.IsZero() && time.Since(slot.lastUsed) >= maxIdle {
			delete(hl.slots, host)
			evicted++
		}
	}
	if evicted > 0 {
		hl.log.Debugf("Evicted %d idle host(s), %d tracked", evicted, len(hl.slots))
	}
	return evicted
}

// Hosts returns the number of tracked hosts
func (hl *HostLimiter) Hosts() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return len(hl.slots)
}
