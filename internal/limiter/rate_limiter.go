package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucketScript runs the bucket refill and take in one atomic step.
// Returns {allowed, remaining, limit} and, when denied, the seconds until
// the next token.
const tokenBucketScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local refill_interval = tonumber(ARGV[2])
	local burst = tonumber(ARGV[3])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or burst
	local last_refill = tonumber(bucket[2]) or now

	local elapsed = now - last_refill
	local tokens_to_add = math.floor(elapsed / refill_interval)
	tokens = math.min(burst, tokens + tokens_to_add)

	if tokens >= 1 then
		tokens = tokens - 1
		redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
		redis.call('EXPIRE', key, 3600)
		return {1, tokens, burst}
	else
		local time_until_next = refill_interval - (elapsed % refill_interval)
		redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
		redis.call('EXPIRE', key, 3600)
		return {0, tokens, burst, tostring(time_until_next)}
	end
`

// RateLimiter implements per-user token bucket rate limiting over Redis.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	rps    int
	burst  int
}

// NewRateLimiter creates a rate limiter with the given refill rate and
// burst size.
func NewRateLimiter(client *redis.Client, logger *zap.Logger, rps, burst int) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{client: client, logger: logger, rps: rps, burst: burst}
}

// RateResult is the outcome of one rate limit check.
type RateResult struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration
}

// CheckUser checks whether the user may issue one more request now. Redis
// unavailability fails open: rate limiting protects capacity, it is not an
// accounting control, so an outage must not take the service down with it.
func (r *RateLimiter) CheckUser(ctx context.Context, userID string) (*RateResult, error) {
	key := fmt.Sprintf("rate_limit:user:%s", userID)
	refillInterval := 1.0 / float64(r.rps)

	result, err := r.client.Eval(ctx, tokenBucketScript,
		[]string{key}, time.Now().Unix(), refillInterval, r.burst).Result()
	if err != nil {
		r.logger.Warn("rate limit check unavailable, allowing request",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return &RateResult{Allowed: true, Remaining: r.burst, Limit: r.burst}, nil
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit script result")
	}

	out := &RateResult{
		Allowed:   values[0].(int64) == 1,
		Remaining: int(values[1].(int64)),
		Limit:     int(values[2].(int64)),
	}
	if !out.Allowed && len(values) >= 4 {
		if seconds, ok := values[3].(string); ok {
			var retry float64
			fmt.Sscanf(seconds, "%f", &retry)
			out.RetryAfter = time.Duration(retry * float64(time.Second))
		}
	}
	return out, nil
}

// Reset clears a user's bucket, for tests.
func (r *RateLimiter) Reset(ctx context.Context, userID string) error {
	return r.client.Del(ctx, fmt.Sprintf("rate_limit:user:%s", userID)).Err()
}
