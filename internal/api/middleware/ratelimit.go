package middleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const visitorIdleTimeout = 10 * time.Minute

type visitor struct {
	*rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands each visitor its own token bucket. Visitors are keyed by
// user id when present, otherwise by client IP.
type RateLimiter struct {
	sync.Mutex

	burst    int
	rate     rate.Limit
	visitors map[string]*visitor
	now      func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		visitors: map[string]*visitor{},
		now:      time.Now,
	}
}

// Allow checks if key has not exceeded its rate
func (l *RateLimiter) Allow(key string) bool {
	l.Lock()
	defer l.Unlock()

	now := l.now()
	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{Limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.AllowN(now, 1)
}

// Cleanup forgets visitors idle longer than the idle timeout. It returns how many
// were removed.
func (l *RateLimiter) Cleanup() int {
	l.Lock()
	defer l.Unlock()

	removed := 0
	cutoff := l.now().Add(-visitorIdleTimeout)
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// RunCleanup evicts idle visitors every minute until ctx is done.
func (l *RateLimiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				log.Printf("Rate limiter: evicted %d idle visitors", n)
			}
		}
	}
}

func (l *RateLimiter) Len() int {
	l.Lock()
	defer l.Unlock()
	return len(l.visitors)
}

// Middleware responds 429 once a visitor runs out of tokens. A zero rate
// disables limiting.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		key := c.GetHeader(UserIDHeader)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please slow down"})
			return
		}
		c.Next()
	}
}
