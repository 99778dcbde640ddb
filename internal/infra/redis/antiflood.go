package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultAntifloodInterval = 300 * time.Millisecond

// Flooding calls neither refresh the stored timestamp nor extend the TTL.
var floodScript = goredis.NewScript(`
local last = redis.call("GET", KEYS[1])
local now = tonumber(ARGV[1])
if last and (now - tonumber(last)) < tonumber(ARGV[2]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// Antiflood admits at most one action per user per interval, shared across
// bot replicas.
type Antiflood struct {
	client   *goredis.Client
	interval time.Duration
	now      func() time.Time
	script   *goredis.Script
}

func NewAntiflood(client *goredis.Client, interval time.Duration) (*Antiflood, error) {
	return newAntiflood(client, interval, time.Now)
}

func newAntiflood(client *goredis.Client, interval time.Duration, nowFn func() time.Time) (*Antiflood, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if interval <= 0 {
		interval = defaultAntifloodInterval
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &Antiflood{
		client:   client,
		interval: interval,
		now:      nowFn,
		script:   floodScript,
	}, nil
}

// Allow records the action and reports true, or reports false when the user's
// previous admitted action is younger than the interval.
func (a *Antiflood) Allow(ctx context.Context, userID int64) (bool, error) {
	if a == nil || a.client == nil || a.script == nil {
		return false, fmt.Errorf("antiflood is not initialized")
	}

	nowMillis := a.now().UnixMilli()
	intervalMillis := a.interval.Milliseconds()
	ttlMillis := intervalMillis * 3

	result, err := a.script.Run(ctx, a.client, []string{Key("flood", userID)}, nowMillis, intervalMillis, ttlMillis).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate antiflood: %w", err)
	}

	return result == 1, nil
}
