package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client IP may stay silent before its bucket
// is dropped. A bucket idle that long has refilled anyway.
const limiterIdleTTL = 10 * time.Minute

// RateLimit returns per-client-IP rate limiting middleware using token buckets.
// Every report fans out into dozens of paid LLM calls, so a single client
// must not be able to flood the service.
//
// Token bucket algorithm: each IP gets a bucket that fills at `rps` tokens/sec
// up to `burst` tokens. Each request consumes one token. If the bucket is
// empty, the request is rejected with 429. A non-positive rps disables the limit.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiters := newIPLimiters(rps, burst, limiterIdleTTL, time.Now)

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters holds one bucket per client IP. The map is public-facing, so
// entries idle for longer than ttl are swept, at most once per ttl.
//
// sync.Mutex protects the map from concurrent goroutine access.
type ipLimiters struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newIPLimiters(rps float64, burst int, ttl time.Duration, now func() time.Time) *ipLimiters {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiters{
		visitors:  make(map[string]*visitor),
		rps:       rate.Limit(rps),
		burst:     burst,
		ttl:       ttl,
		now:       now,
		lastSweep: now(),
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.ttl {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
