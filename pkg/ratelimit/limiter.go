package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per remote host so that feeds and
// article pages served from the same site share a politeness budget.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	rps   rate.Limit
	burst int
}

// NewHostLimiter creates a limiter allowing requestsPerSecond per host with
// the given burst. A non-positive rate disables limiting.
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      limit,
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL's host is allowed
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return h.limiter(hostOf(rawURL)).Wait(ctx)
}

// allow reports whether a request to rawURL's host may happen now
func (h *HostLimiter) allow(rawURL string) bool {
	return h.limiter(hostOf(rawURL)).Allow()
}

// Hosts returns the number of hosts contacted so far
func (h *HostLimiter) Hosts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.limiters)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.RLock()
	l, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return l
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok = h.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(h.rps, h.burst)
	h.limiters[host] = l
	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}
