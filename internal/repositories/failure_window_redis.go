package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const failureKeyPrefix = "login_failures:"

// RedisFailureWindow keeps failed-attempt timestamps per key in a sorted set
// scored by unix milliseconds, shared by every API process.
type RedisFailureWindow struct {
	rdb *redis.Client
}

func NewRedisFailureWindow(rdb *redis.Client) *RedisFailureWindow {
	return &RedisFailureWindow{rdb: rdb}
}

// Failures drops entries at or before since and returns the rest, oldest first.
func (w *RedisFailureWindow) Failures(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	k := failureKey(key)
	cutoff := strconv.FormatInt(since.UnixMilli(), 10)

	pipe := w.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	rangeCmd := pipe.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{Min: "(" + cutoff, Max: "+inf"})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read failure window %q: %w", key, err)
	}

	entries := rangeCmd.Val()
	out := make([]time.Time, 0, len(entries))
	for _, z := range entries {
		out = append(out, time.UnixMilli(int64(z.Score)))
	}
	return out, nil
}

// Add records a failure at the given time and pushes the key's expiry out to ttl.
func (w *RedisFailureWindow) Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	k := failureKey(key)
	member := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()

	pipe := w.rdb.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.PExpire(ctx, k, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failure %q: %w", key, err)
	}
	return nil
}

func (w *RedisFailureWindow) Reset(ctx context.Context, key string) error {
	if err := w.rdb.Del(ctx, failureKey(key)).Err(); err != nil {
		return fmt.Errorf("reset failure window %q: %w", key, err)
	}
	return nil
}

func failureKey(key string) string {
	return failureKeyPrefix + key
}
