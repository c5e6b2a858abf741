package lockout

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "khazana:lockout:"

// RedisStore keeps failure counters in Redis hashes. A counter lives for one
// window from the first failure; reaching the threshold locks the username
// for a full window from that moment.
type RedisStore struct {
	client    *redis.Client
	threshold int
	window    time.Duration
}

func NewRedisStore(client *redis.Client, threshold int, window time.Duration) *RedisStore {
	return &RedisStore{client: client, threshold: threshold, window: window}
}

func (s *RedisStore) Get(ctx context.Context, username string) (State, error) {
	data, err := s.client.HGetAll(ctx, keyPrefix+username).Result()
	if err != nil {
		return State{}, err
	}
	return parseState(data), nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, username string, now time.Time) (State, error) {
	key := keyPrefix + username

	// The counter and its expiry are written together; NX keeps the window
	// anchored at the first failure.
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, key, "failed_count", 1)
		p.ExpireNX(ctx, key, s.window)
		return nil
	})
	if err != nil {
		return State{}, err
	}

	count := incr.Val()
	state := State{FailedCount: int(count)}

	if int(count) < s.threshold {
		return state, nil
	}

	lockedUntil := now.Add(s.window).UTC()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "locked_until", lockedUntil.Unix())
		p.Expire(ctx, key, s.window)
		return nil
	})
	if err != nil {
		return State{}, err
	}

	state.LockedUntil = &lockedUntil
	return state, nil
}

func (s *RedisStore) Clear(ctx context.Context, username string) error {
	return s.client.Del(ctx, keyPrefix+username).Err()
}

func parseState(data map[string]string) State {
	var state State
	if raw, ok := data["failed_count"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state
}
