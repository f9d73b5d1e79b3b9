// Package ratelimit implements a Redis-backed token bucket. The bucket
// state lives in one hash per key and is updated atomically by a Lua
// script, so every server instance shares the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-reservation/internal/config"
)

var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RetrySeconds rounds RetryAfter up to whole seconds.
func (r Result) RetrySeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// Limiter takes one token per call from the bucket of a key.
type Limiter struct {
	cfg config.RateLimitConfig
	rdb redis.Scripter
	now func() time.Time
}

// New returns a limiter over rdb. A nil client or a disabled config yields
// a limiter that allows everything.
func New(cfg config.RateLimitConfig, rdb *redis.Client) *Limiter {
	l := &Limiter{cfg: cfg, now: time.Now}
	if rdb != nil {
		l.rdb = rdb
	}
	return l
}

// Enabled reports whether calls are actually metered.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.Enabled && l.rdb != nil
}

// Capacity is the bucket size.
func (l *Limiter) Capacity() int { return l.cfg.Capacity }

// Debug reports whether callers should log decisions.
func (l *Limiter) Debug() bool { return l != nil && l.cfg.Debug }

// Allow takes a token from the bucket identified by key. On a Redis error
// the call is allowed and the error returned so the caller can log it.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	args := []interface{}{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL / time.Second),
	}
	vals, err := bucketScript.Run(ctx, l.rdb, []string{l.cfg.Prefix + ":" + key}, args...).Result()
	if err != nil {
		return Result{Allowed: true}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Result{Allowed: true}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	return Result{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

// Key builds the bucket key for a caller from the configured strategy.
func (l *Limiter) Key(ip, user string) string {
	if ip == "" {
		ip = "unknown"
	}
	if user == "" {
		user = "anon"
	}
	switch strings.ToLower(l.cfg.KeyStrategy) {
	case "ip":
		return "ip:" + ip
	case "user":
		return "user:" + user
	default:
		return "ip:" + ip + ":user:" + user
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
