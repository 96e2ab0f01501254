package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPRateLimiter manages rate limiters for each IP address
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  *sync.RWMutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new rate limiter
// r: requests per second
// b: burst size
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		mu:  &sync.RWMutex{},
		r:   r,
		b:   b,
	}

	// Clean up old entries periodically to prevent memory leak
	go i.cleanupLoop()

	return i
}

// AddIP creates a new limiter for an IP if it doesn't exist
func (i *IPRateLimiter) AddIP(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}

	return limiter
}

// GetLimiter returns the limiter for a given IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	limiter, exists := i.ips[ip]
	if !exists {
		i.mu.Unlock()
		return i.AddIP(ip)
	}
	i.mu.Unlock()
	return limiter
}

// cleanupLoop is a naive cleanup: once an hour it replaces the whole map,
// dropping every IP's limiter. It does not track last access time, so
// active clients also get a fresh bucket after each reset.
func (i *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(1 * time.Hour)
		i.mu.Lock()
		// Reset map (simple but effective for refreshing)
		log.Println("Cleaning up rate limiter map")
		i.ips = make(map[string]*rate.Limiter)
		i.mu.Unlock()
	}
}

// PerMinute converts a requests-per-minute budget into a rate.Limit,
// with a burst equal to the budget itself so a client can spend its
// whole minute's allowance in one go.
func PerMinute(n int) (rate.Limit, int) {
	return rate.Limit(float64(n) / 60.0), n
}

// RateLimit returns a per-IP limiter middleware for the given
// requests-per-minute budget, returning 429 once exhausted.
func RateLimit(requestsPerMinute int) gin.HandlerFunc {
	r, b := PerMinute(requestsPerMinute)
	limiter := NewIPRateLimiter(r, b)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}
