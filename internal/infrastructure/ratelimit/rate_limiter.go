package ratelimit

import (
	"sync"
	"time"
)

const (
	ActionLogin   = "login"
	ActionUpload  = "upload"
	ActionMutate  = "mutate"
	bucketIdleTTL = time.Hour
)

// TokenBucket refills refillRate tokens every refillTime up to maxTokens.
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
	lastUsed   time.Time
	mutex      sync.Mutex
}

// Limits configures the bucket handed to each action.
type Limits map[string]func() *TokenBucket

// DefaultLimits are tuned for a registry of a few dozen guests.
func DefaultLimits() Limits {
	return Limits{
		// 10 attempts, one back every 6 seconds
		ActionLogin: func() *TokenBucket { return NewTokenBucket(10, 1, 6*time.Second) },
		// 10 uploads, one back every 30 seconds
		ActionUpload: func() *TokenBucket { return NewTokenBucket(10, 1, 30*time.Second) },
		// reserve/unreserve/admin edits: 30 per minute
		ActionMutate: func() *TokenBucket { return NewTokenBucket(30, 1, 2*time.Second) },
	}
}

// RateLimiter keeps one bucket per client key and action.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	limits  Limits
	mutex   sync.RWMutex
	now     func() time.Time
}

func NewRateLimiter(limits Limits) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		limits:  limits,
		now:     time.Now,
	}
}

func NewTokenBucket(maxTokens, refillRate int, refillTime time.Duration) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: now,
		lastUsed:   now,
	}
}

// allow consumes a token if one is available and otherwise reports how long
// until the next refill.
func (tb *TokenBucket) allow(now time.Time) (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed/tb.refillTime) * tb.refillRate
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(tokensToAdd/tb.refillRate) * tb.refillTime)
	}
	tb.lastUsed = now

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	return false, tb.lastRefill.Add(tb.refillTime).Sub(now)
}

// Allow checks whether key may perform action now. Unknown actions are not
// limited.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	factory, ok := rl.limits[action]
	if !ok {
		return true, 0
	}

	id := key + ":" + action

	rl.mutex.RLock()
	bucket, exists := rl.buckets[id]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if bucket, exists = rl.buckets[id]; !exists {
			bucket = factory()
			bucket.lastRefill = rl.now()
			rl.buckets[id] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.allow(rl.now())
}

// Cleanup drops buckets idle for longer than an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for id, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastUsed)
		bucket.mutex.Unlock()
		if idle > bucketIdleTTL {
			delete(rl.buckets, id)
		}
	}
}

// StartCleanupRoutine runs Cleanup every 30 minutes until done is closed.
func (rl *RateLimiter) StartCleanupRoutine(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-done:
				return
			}
		}
	}()
}

func (rl *RateLimiter) size() int {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()
	return len(rl.buckets)
}
