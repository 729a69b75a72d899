package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "arkstore:ratewindow:"

// RedisStore keeps rate-window entries in a Redis sorted set per identity,
// scored by timestamp. It lets several replicas share one admission window.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. ttl should comfortably exceed the
// window length; keys expire on their own so PruneBefore stays cheap.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

var _ Store = (*RedisStore)(nil)

// admitScript trims, counts and conditionally adds in one server-side step.
// Redis runs scripts atomically, so replicas sharing a window cannot both
// observe the same count and both add past the ceiling.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
if n < tonumber(ARGV[2]) then
  redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
  return {n, 1}
end
return {n, 0}
`)

func (s *RedisStore) key(identity string) string {
	return redisKeyPrefix + identity
}

func (s *RedisStore) Admit(ctx context.Context, identity, sourceAddr string, since, ts time.Time, ceiling int) (int, bool, error) {
	// Member must be unique per request; the source address alone may repeat
	// within one nanosecond.
	member := sourceAddr + "|" + uuid.NewString()

	vals, err := admitScript.Run(ctx, s.client, []string{s.key(identity)},
		strconv.FormatInt(since.UnixNano()-1, 10),
		ceiling,
		ts.UnixNano(),
		member,
		s.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("admit rate window: %w", err)
	}
	if len(vals) != 2 {
		return 0, false, fmt.Errorf("admit rate window: unexpected script reply %v", vals)
	}
	return int(vals[0]), vals[1] == 1, nil
}

func (s *RedisStore) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	key := s.key(identity)

	// Drop expired members first so the count reflects only the live window.
	if err := s.client.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(since.UnixNano()-1, 10)).Err(); err != nil {
		return 0, fmt.Errorf("prune rate window: %w", err)
	}
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("count rate window: %w", err)
	}
	return int(n), nil
}

// PruneBefore is satisfied by key TTLs plus the per-check trim in
// CountSince; a full cross-identity scan is not worth the round trips.
func (s *RedisStore) PruneBefore(ctx context.Context, before time.Time) error {
	return nil
}
