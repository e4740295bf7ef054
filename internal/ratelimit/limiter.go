// Package ratelimit keeps a token bucket per client key.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdle is how long an unused bucket is kept before a sweep drops it.
const DefaultIdle = 30 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one rate.Limiter per client key.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*entry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New creates a Limiter allowing burst events at once and refilling at limit.
func New(limit rate.Limit, burst int) *Limiter {
	return &Limiter{
		clients: make(map[string]*entry),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// PerWindow returns a Limiter allowing n events per window, all of which may
// be spent at once.
func PerWindow(n int, window time.Duration) *Limiter {
	return New(rate.Every(window/time.Duration(n)), n)
}

// Allow reports whether key may perform one more event now.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	e, ok := l.clients[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Sweep drops clients not seen for idle and returns how many were dropped.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, e := range l.clients {
		if e.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// Run sweeps idle clients every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(idle)
		}
	}
}

// ClientIP returns the address used as a rate limit key. X-Forwarded-For is
// honoured only when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
