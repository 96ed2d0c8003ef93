package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientLimiters hands out one token bucket per client address.
type ClientLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewClientLimiters allows each client limit events per second with bursts
// of burst.
func NewClientLimiters(limit rate.Limit, burst int) *ClientLimiters {
	return &ClientLimiters{
		buckets: map[string]*rate.Limiter{},
		limit:   limit,
		burst:   burst,
	}
}

// For returns the bucket of addr, creating it on first use.
func (l *ClientLimiters) For(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[addr]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[addr] = b
	}
	return b
}

// RateLimiter answers 429 once a client spends its burst faster than perSec
// refills it.
func RateLimiter(perSec float64, burst int) gin.HandlerFunc {
	clients := NewClientLimiters(rate.Limit(perSec), burst)
	return func(c *gin.Context) {
		if clients.For(c.ClientIP()).Allow() {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}
