package middleware

import (
	"net/http"
	"sync"
	"time"

	"companion-engine/backend/pkg/errors"
	"companion-engine/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures per-client token buckets.
type RateLimiterOptions struct {
	Limit          rate.Limit // requests per second
	Burst          int
	ExpiryDuration time.Duration // how long idle client state is kept
	KeyFunc        func(*gin.Context) string
}

// DefaultRateLimiterOptions allows 5 req/s with a burst of 10, keyed
// by client IP.
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          5,
		Burst:          10,
		ExpiryDuration: time.Hour,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per client key, expiring idle
// buckets in the background.
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	buckets map[string]*bucket
	logger  *logger.Logger
}

func NewRateLimiter(logger *logger.Logger, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	return &RateLimiter{options: opts, buckets: make(map[string]*bucket), logger: logger}
}

// Middleware rejects over-limit requests with 429.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	go r.expire()

	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)
		if !r.bucketFor(key).Allow() {
			r.logger.Warn("rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.Error(errors.NewError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later."))
			c.Header("Retry-After", "1")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) bucketFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.options.Limit, r.options.Burst)}
		r.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (r *RateLimiter) expire() {
	for {
		time.Sleep(time.Minute)

		r.mu.Lock()
		for k, b := range r.buckets {
			if time.Since(b.lastSeen) > r.options.ExpiryDuration {
				delete(r.buckets, k)
			}
		}
		r.mu.Unlock()
	}
}
