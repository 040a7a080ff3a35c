package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"contract-analyzer/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	defaultMaxBuckets     = 10000

	// HeaderRateLimitRemaining reports whole tokens left in the caller's bucket.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// RateLimitRule is a token bucket refilled at Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// RateLimitConfig maps each request to a group and each group to a rule.
// Requests whose group has no rule are not limited.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one bucket per principal and group. Buckets that have
// refilled completely are dropped once MaxBuckets is exceeded.
type RateLimiter struct {
	MaxBuckets int

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
	rule   RateLimitRule
}

// NewRateLimiter returns a limiter using now as its clock (time.Now when nil).
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		MaxBuckets: defaultMaxBuckets,
		buckets:    make(map[string]*bucket),
		now:        now,
	}
}

// RateLimit throttles per authenticated user, or per client IP before login.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}

		allowed, remaining, retryAfter := cfg.Limiter.take(principal(c)+"|"+group, rule)
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(remaining))
		if allowed {
			c.Next()
			return
		}

		retryAfterMs := int(retryAfter / time.Millisecond)
		if retryAfterMs <= 0 {
			retryAfterMs = 1000
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(float64(retryAfterMs)/1000.0))))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
			"retryAfterMs": retryAfterMs,
			"group":        group,
		})
	}
}

func principal(c *gin.Context) string {
	if userID := strings.TrimSpace(UserIDFromContext(c)); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// take removes one token from key's bucket. When the bucket is empty it
// reports how long until the next token.
func (l *RateLimiter) take(key string, rule RateLimitRule) (allowed bool, remaining int, retryAfter time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, rule.Burst, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if l.MaxBuckets > 0 && len(l.buckets) >= l.MaxBuckets {
			l.pruneLocked(now)
		}
		b = &bucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = b
	}
	b.rule = rule
	b.refill(now)

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	wait := (1 - b.tokens) / rule.Rate
	return false, 0, time.Duration(math.Ceil(wait*1000.0)) * time.Millisecond
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(b.rule.Burst), b.tokens+elapsed*b.rule.Rate)
	b.last = now
}

// pruneLocked drops buckets that would be full by now; they carry no state.
func (l *RateLimiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		b.refill(now)
		if b.tokens >= float64(b.rule.Burst) {
			delete(l.buckets, key)
		}
	}
}

// size reports the number of live buckets.
func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
