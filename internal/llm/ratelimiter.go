package llm

import (
	"sync"
	"time"
)

// RateLimitExceededError is returned when the request limit is exceeded.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return "rate limit exceeded"
}

// TokenBucketRateLimiter implements the token bucket algorithm for rate
// limiting LLM calls. Schedule generation and chat replies share one bucket
// per provider so background regeneration cannot starve interactive chat
// of its API quota, only slow it down.
type TokenBucketRateLimiter struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillRate   time.Duration // Interval at which tokens are replenished
	refillAmount int           // Tokens added per interval
	lastRefill   time.Time     // Time of the last refill
	mu           sync.Mutex
	metrics      *RateLimitMetrics
}

// RateLimitMetrics holds rate limiting counters.
type RateLimitMetrics struct {
	TotalRequests    int64
	AllowedRequests  int64
	RejectedRequests int64
}

// NewTokenBucketRateLimiter creates a new rate limiter.
// capacity is the bucket size; refillInterval and refillAmount control the
// sustained rate (e.g. time.Second and 1 for one request per second).
func NewTokenBucketRateLimiter(capacity int, refillInterval time.Duration, refillAmount int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		capacity:     capacity,
		tokens:       capacity,
		refillRate:   refillInterval,
		refillAmount: refillAmount,
		lastRefill:   time.Now(),
		metrics:      &RateLimitMetrics{},
	}
}

// TryAcquire attempts to take a token. Returns true if one was available,
// otherwise false and the wait time until the next refill.
func (r *TokenBucketRateLimiter) TryAcquire() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalRequests++

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)

	if elapsed >= r.refillRate {
		intervals := int(elapsed / r.refillRate)

		tokensToAdd := intervals * r.refillAmount
		if r.tokens+tokensToAdd > r.capacity {
			r.tokens = r.capacity
		} else {
			r.tokens += tokensToAdd
		}

		// Keep the remainder so refill timing stays accurate
		r.lastRefill = now.Add(-elapsed % r.refillRate)
	}

	if r.tokens > 0 {
		r.tokens--
		r.metrics.AllowedRequests++
		return true, 0
	}

	timeToNextRefill := r.refillRate - (now.Sub(r.lastRefill) % r.refillRate)
	r.metrics.RejectedRequests++

	return false, timeToNextRefill
}

// Acquire blocks until a token is available.
func (r *TokenBucketRateLimiter) Acquire() {
	for {
		allowed, waitTime := r.TryAcquire()
		if allowed {
			return
		}
		time.Sleep(waitTime)
	}
}

// GetMetrics returns a copy of the current counters.
func (r *TokenBucketRateLimiter) GetMetrics() RateLimitMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitMetrics{
		TotalRequests:    r.metrics.TotalRequests,
		AllowedRequests:  r.metrics.AllowedRequests,
		RejectedRequests: r.metrics.RejectedRequests,
	}
}

// Reset restores the limiter to its initial state.
func (r *TokenBucketRateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = r.capacity
	r.lastRefill = time.Now()
	r.metrics = &RateLimitMetrics{}
}

// GetAvailableTokens returns the current number of available tokens.
func (r *TokenBucketRateLimiter) GetAvailableTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tokens
}
