package infrastructure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter implements token bucket rate limiting per chat
type MessageRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*chatBucket
	rate        rate.Limit
	burst       int
	idleTTL     time.Duration
	cleanupTick time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter allows perMinute events per chat with the given burst.
// A non-positive perMinute disables limiting.
func NewMessageRateLimiter(perMinute float64, burst int) *MessageRateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &MessageRateLimiter{
		buckets:     make(map[string]*chatBucket),
		rate:        rate.Limit(perMinute / 60),
		burst:       burst,
		idleTTL:     10 * time.Minute,
		cleanupTick: 5 * time.Minute,
		stop:        make(chan struct{}),
	}
	if perMinute <= 0 {
		rl.rate = rate.Inf
	}

	go rl.cleanup()

	return rl
}

// Allow consumes one token for chatID if available
func (rl *MessageRateLimiter) Allow(chatID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[chatID]
	if !exists {
		bucket = &chatBucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.buckets[chatID] = bucket
	}
	bucket.lastSeen = time.Now()
	return bucket.limiter.Allow()
}

// Reset removes rate limit state for a chat
func (rl *MessageRateLimiter) Reset(chatID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, chatID)
}

// Close stops the cleanup goroutine
func (rl *MessageRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup removes stale buckets periodically
func (rl *MessageRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for chatID, bucket := range rl.buckets {
				if now.Sub(bucket.lastSeen) > rl.idleTTL {
					delete(rl.buckets, chatID)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// GetStats returns rate limiter statistics
func (rl *MessageRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	perMinute := float64(rl.rate) * 60
	if rl.rate == rate.Inf {
		perMinute = -1 // unlimited
	}
	return map[string]interface{}{
		"active_chats": len(rl.buckets),
		"per_minute":   perMinute,
		"burst":        rl.burst,
	}
}
