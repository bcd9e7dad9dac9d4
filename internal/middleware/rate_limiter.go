package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"restopos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Rate limiter ──────────────────────────────────────────────────────────────
// Fixed window counter per client IP. Expired windows are swept at most once
// per window while serving requests, so no background goroutine is needed.

type window struct {
	count int
	ends  time.Time
}

type ipLimiter struct {
	limit  int
	length time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

func newIPLimiter(limit int, length time.Duration) *ipLimiter {
	return &ipLimiter{limit: limit, length: length, now: time.Now, windows: make(map[string]*window)}
}

// take counts one request from ip. It reports whether the request is within
// the limit and when the current window ends.
func (l *ipLimiter) take(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextSweep) {
		l.sweepLocked(now)
		l.nextSweep = now.Add(l.length)
	}
	w, ok := l.windows[ip]
	if !ok || now.After(w.ends) {
		w = &window{ends: now.Add(l.length)}
		l.windows[ip] = w
	}
	w.count++
	return w.count <= l.limit, w.ends
}

func (l *ipLimiter) sweepLocked(now time.Time) {
	purged := 0
	for ip, w := range l.windows {
		if now.After(w.ends) {
			delete(l.windows, ip)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(l.windows)).Msg("rate limiter: expired windows swept")
	}
}

// RateLimiter allows limit requests per window per client IP. A limit of
// zero or less disables it.
func RateLimiter(limit int, length time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := newIPLimiter(limit, length)
	return func(c *gin.Context) {
		ok, ends := l.take(c.ClientIP())
		if !ok {
			wait := int(time.Until(ends).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("rate_limited", "too many requests, try again shortly"))
			return
		}
		c.Next()
	}
}
