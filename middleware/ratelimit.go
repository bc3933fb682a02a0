package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByIP charges requests to the client IP.
func ByIP(c *gin.Context) string { return "ip:" + c.ClientIP() }

// ByAccount charges requests to the authenticated account, falling back to
// the client IP. It must run after Auth.
func ByAccount(c *gin.Context) string {
	if id := GetAccountID(c); id != 0 {
		return "acct:" + strconv.FormatInt(id, 10)
	}
	return ByIP(c)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimit provides token-bucket rate limiting per key.
// r = requests per second, b = burst size. A nil key means ByIP.
func RateLimit(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByIP
	}
	limiters := &sync.Map{}

	// Cleanup goroutine: remove stale entries every 5 minutes.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-10 * time.Minute).UnixNano()
			limiters.Range(func(k, v any) bool {
				if v.(*bucket).lastSeen.Load() < cutoff {
					limiters.Delete(k)
				}
				return true
			})
		}
	}()

	getLimiter := func(k string) *rate.Limiter {
		v, ok := limiters.Load(k)
		if !ok {
			v, _ = limiters.LoadOrStore(k, &bucket{limiter: rate.NewLimiter(r, b)})
		}
		bk := v.(*bucket)
		bk.lastSeen.Store(time.Now().UnixNano())
		return bk.limiter
	}

	return func(c *gin.Context) {
		if !getLimiter(key(c)).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
