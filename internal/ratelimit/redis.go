package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "folio:login:"

// RedisStore shares attempts between instances. Each key is a sorted set
// scored by attempt time in microseconds and expires one window after the
// last write.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore whose keys expire after window.
func NewRedisStore(client redis.UniversalClient, window time.Duration) *RedisStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisStore{client: client, prefix: defaultRedisPrefix, ttl: window}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	members, err := r.client.ZRange(ctx, r.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	out := make([]time.Time, 0, len(members))
	for _, m := range members {
		nanos, err := strconv.ParseInt(strings.SplitN(m, ":", 2)[0], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, time.Unix(0, nanos))
	}
	return out, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, attempts []time.Time) error {
	rk := r.key(key)
	if len(attempts) == 0 {
		if err := r.client.Del(ctx, rk).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	members := make([]redis.Z, len(attempts))
	for i, t := range attempts {
		members[i] = redis.Z{
			Score:  float64(t.UnixMicro()),
			Member: strconv.FormatInt(t.UnixNano(), 10) + ":" + strconv.Itoa(i),
		}
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, rk)
	pipe.ZAdd(ctx, rk, members...)
	pipe.PExpire(ctx, rk, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put attempts: %w", err)
	}
	return nil
}

func (r *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	upper := strconv.FormatInt(cutoff.UnixMicro(), 10)
	evicted := 0

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rk := iter.Val()
		removed, err := r.client.ZRemRangeByScore(ctx, rk, "-inf", upper).Result()
		if err != nil {
			return evicted, fmt.Errorf("redis zremrangebyscore: %w", err)
		}
		if removed == 0 {
			continue
		}
		// Redis deletes a sorted set once its last member is removed.
		n, err := r.client.Exists(ctx, rk).Result()
		if err != nil {
			return evicted, fmt.Errorf("redis exists: %w", err)
		}
		if n == 0 {
			evicted++
		}
	}
	if err := iter.Err(); err != nil {
		return evicted, fmt.Errorf("redis scan: %w", err)
	}
	return evicted, nil
}
