// Package ratelimit throttles claim submissions per client IP.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultIdleTimeout is how long an unused limiter is kept.
const DefaultIdleTimeout = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	logger   logrus.FieldLogger
	now      func() time.Time
}

// New creates a limiter allowing requestsPerSecond with the given burst per key.
func New(requestsPerSecond float64, burst int, logger logrus.FieldLogger) *RateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
		now:      time.Now,
	}
}

// Allow reports whether a request from key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.Allow(key) {
			rl.logger.WithFields(logrus.Fields{
				"client_ip": key,
				"path":      c.FullPath(),
			}).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
				"code":    "rate_limited",
			})
			return
		}
		c.Next()
	}
}

// Cleanup drops limiters unused for longer than idle and returns how many.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// ScheduleCleanup registers a periodic Cleanup on scheduler.
func (rl *RateLimiter) ScheduleCleanup(scheduler gocron.Scheduler, interval, idle time.Duration) (gocron.Job, error) {
	return scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := rl.Cleanup(idle); n > 0 {
				rl.logger.WithField("removed", n).Debug("rate limiter cleanup")
			}
		}),
		gocron.WithName("ratelimit-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
