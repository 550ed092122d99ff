package middleware

import (
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
	domainerrors "authcore/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// clientLimiter holds a client's token bucket and its last access time.
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles requests per client IP. It guards the login endpoint
// against online password guessing; hashing happens outside its lock.
type RateLimiter struct {
	enabled         bool
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	logger          *slog.Logger
	now             func() time.Time

	mu       sync.RWMutex
	limiters map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter builds the limiter from the rateLimit configuration.
// Start launches the background cleanup; Stop ends it.
func NewRateLimiter(cfg *config.Config, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		logger:   logger,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	if rlCfg := cfg.RateLimit; rlCfg != nil {
		rl.enabled = rlCfg.Enabled
		rl.limit = rate.Limit(rlCfg.RequestsPerMinute / 60.0)
		rl.burst = rlCfg.Burst
		rl.cleanupInterval = rlCfg.CleanupInterval
	}

	return rl
}

// Start launches the cleanup loop.
func (rl *RateLimiter) Start() {
	if !rl.enabled || rl.cleanupInterval <= 0 {
		return
	}

	go rl.cleanupLoop()
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Limit is the echo middleware. Rejected requests get 429 with Retry-After.
func (rl *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !rl.enabled {
			return next(c)
		}

		key := c.RealIP()
		if !rl.limiterFor(key).Allow() {
			c.Response().Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			deliverycontext.GetLoggerOrDefault(c.Request().Context(), rl.logger).Warn("Rate limit exceeded",
				slog.String("client", key),
				slog.String("path", c.Path()),
			)

			return domainerrors.ErrTooManyRequests
		}

		return next(c)
	}
}

// Size returns the number of tracked clients.
func (rl *RateLimiter) Size() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.RLock()
	cl, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		cl.lastAccess = now
		rl.mu.Unlock()

		return cl.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Another request may have created it between the two locks.
	if cl, exists := rl.limiters[key]; exists {
		cl.lastAccess = now

		return cl.limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: now,
	}

	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for more than twice the cleanup interval.
func (rl *RateLimiter) cleanup() {
	ttl := rl.cleanupInterval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

// retryAfterSeconds estimates the time until one token is refilled.
func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.limit <= 0 {
		return 1
	}

	return max(1, int(math.Ceil(1.0/float64(rl.limit))))
}
