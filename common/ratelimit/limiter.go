// Package ratelimit paces mutating requests. A redis fixed-window counter
// (atomic via an embedded Lua script) caps how often a single member may
// attempt claims and uploads; it coordinates nothing between distinct
// members.
package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ki1r0y/gallery/common/logger"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Result contains the outcome of a rate limit check
type Result struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the window resets (0 if allowed)
}

// Limiter provides per-member rate limiting using Redis + Lua
type Limiter struct {
	redis  *redis.Client
	script *redis.Script
	log    *logger.Logger
}

// NewLimiter creates a limiter with the embedded Lua script
func NewLimiter(redisClient *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		log:    log,
	}
}

// CheckMemberMutations checks the mutating-request limit for one member
func (l *Limiter) CheckMemberMutations(ctx context.Context, username string, limit int64, windowSec int) (*Result, error) {
	key := fmt.Sprintf("rate_limit:member:%s", username)
	return l.check(ctx, key, limit, windowSec)
}

// check executes the rate limit Lua script atomically
func (l *Limiter) check(ctx context.Context, key string, limit int64, windowSec int) (*Result, error) {
	raw, err := l.script.Run(ctx, l.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		l.log.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Result array: {allowed, current_count, limit, retry_after}
	fields, ok := raw.([]interface{})
	if !ok || len(fields) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	result := &Result{
		Allowed:           fields[0].(int64) == 1,
		CurrentCount:      fields[1].(int64),
		Limit:             fields[2].(int64),
		RetryAfterSeconds: fields[3].(int64),
	}

	if !result.Allowed {
		l.log.Warn("rate limit exceeded",
			"key", key,
			"current", result.CurrentCount,
			"limit", result.Limit,
			"retry_after", result.RetryAfterSeconds)
	} else {
		l.log.Debug("rate limit check passed",
			"key", key,
			"current", result.CurrentCount,
			"limit", result.Limit)
	}

	return result, nil
}

// Reset clears a member's counter (for testing/admin)
func (l *Limiter) Reset(ctx context.Context, username string) error {
	return l.redis.Del(ctx, fmt.Sprintf("rate_limit:member:%s", username)).Err()
}

// Sleep waits out the admission pacing delay, or returns early when the
// request context is done. Pacing bounds the rate of a single caller; it is
// not a coordination primitive.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
