package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ephemeral-chat/internal/observability"
)

// Options configures the Redis client.
type Options struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
}

// RedisStore implements Store on top of a Redis client.
type RedisStore struct {
	client     *redis.Client
	maxRetries int
	log        *zap.Logger
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, opts Options, log *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, errors.Join(ErrUnavailable, err))
	}
	return NewRedisStore(client, opts.MaxRetries, log), nil
}

// NewRedisStore wraps an existing client. maxRetries bounds optimistic list mutations.
func NewRedisStore(client *redis.Client, maxRetries int, log *zap.Logger) *RedisStore {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{client: client, maxRetries: maxRetries, log: log}
}

func (s *RedisStore) fail(op string, err error) error {
	observability.IncStoreError(op)
	return fmt.Errorf("redis %s: %w", op, errors.Join(ErrUnavailable, err))
}

func toArgs(values map[string]string) map[string]interface{} {
	args := make(map[string]interface{}, len(values))
	for k, v := range values {
		args[k] = v
	}
	return args
}

func (s *RedisStore) HSetWithTTL(ctx context.Context, key string, values map[string]string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, toArgs(values))
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return s.fail("hset", err)
	}
	return nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, values map[string]string) error {
	if err := s.client.HSet(ctx, key, toArgs(values)).Err(); err != nil {
		return s.fail("hset", err)
	}
	return nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail("hget", err)
	}
	return val, true, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.fail("hgetall", err)
	}
	return vals, nil
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	n, err := s.client.RPush(ctx, key, args...).Result()
	if err != nil {
		return 0, s.fail("rpush", err)
	}
	return n, nil
}

func (s *RedisStore) LRange(ctx context.Context, key string) ([]string, error) {
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, s.fail("lrange", err)
	}
	return items, nil
}

// MutateList rewrites a single list slot under WATCH so that a concurrent writer on the same key
// aborts the transaction instead of being overwritten. The scan is retried up to maxRetries times.
func (s *RedisStore) MutateList(ctx context.Context, key string, fn ListMutator) error {
	var fnErr error
	txf := func(tx *redis.Tx) error {
		items, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		idx, value, err := fn(items)
		if err != nil {
			fnErr = err
			return err
		}
		if idx < 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LSet(ctx, key, int64(idx), value)
			return nil
		})
		return err
	}

	return s.watchRetry(ctx, "mutate list", key, txf, &fnErr)
}

// MutateHash reads the whole hash under WATCH and writes back the fields fn returns, together with
// the key expiration when ttl is positive. Returning no fields leaves the hash untouched.
func (s *RedisStore) MutateHash(ctx context.Context, key string, ttl time.Duration, fn HashMutator) error {
	var fnErr error
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		set, err := fn(fields)
		if err != nil {
			fnErr = err
			return err
		}
		if len(set) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, toArgs(set))
			if ttl > 0 {
				pipe.PExpire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}
	return s.watchRetry(ctx, "mutate hash", key, txf, &fnErr)
}

// watchRetry runs txf under WATCH on key, retrying while another client wins the race.
// fnErr carries a caller-side rejection out of the transaction untouched.
func (s *RedisStore) watchRetry(ctx context.Context, op, key string, txf func(*redis.Tx) error, fnErr *error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		*fnErr = nil
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if *fnErr != nil {
			return *fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debug("optimistic write conflict, retrying", zap.String("op", op), zap.String("key", key), zap.Int("attempt", attempt+1))
			continue
		}
		return s.fail(op, err)
	}
	observability.IncStoreError(op + " conflict")
	return fmt.Errorf("redis %s %s: %w", op, key, ErrConflict)
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, s.fail("pttl", err)
	}
	// -2 (missing) and -1 (persistent) come back as raw nanosecond values.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisStore) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.PExpire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return s.fail("pexpire", err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return s.fail("del", err)
	}
	return nil
}

func (s *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return s.fail("publish", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := s.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, s.fail("subscribe", err)
	}
	sub := &redisSubscription{ps: ps, out: make(chan []byte, 64), done: make(chan struct{})}
	go sub.pump()
	return sub, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (r *redisSubscription) pump() {
	defer close(r.out)
	for msg := range r.ps.Channel() {
		select {
		case r.out <- []byte(msg.Payload):
		case <-r.done:
			return
		}
	}
}

func (r *redisSubscription) Messages() <-chan []byte {
	return r.out
}

func (r *redisSubscription) Close() error {
	r.once.Do(func() { close(r.done) })
	return r.ps.Close()
}

var _ Store = (*RedisStore)(nil)
