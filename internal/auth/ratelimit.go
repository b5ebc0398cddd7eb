package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a token bucket per user.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewLimiter allows perMinute requests per user with the given burst.
func NewLimiter(perMinute, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: map[string]*bucket{},
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow consumes one token of user's bucket.
func (l *Limiter) Allow(user string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[user]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[user] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Prune drops buckets idle for longer than idle and returns how many.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for user, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, user)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the caller's budget with 429. It must run
// after the authentication middleware.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(UserID(c)) {
				retry := time.Minute
				if l.limit > 0 {
					retry = time.Duration(float64(time.Second) / float64(l.limit))
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			}
			return next(c)
		}
	}
}
