package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks every backing store failure other than a missing key.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConflict is returned when an optimistic mutation keeps losing to concurrent writers.
	ErrConflict = errors.New("store write conflict")
)

// ListMutator inspects the current list items and returns the index to overwrite and its new value.
// A negative index leaves the list untouched.
type ListMutator func(items []string) (index int, value string, err error)

// HashMutator inspects every field of a hash and returns the fields to write.
// An empty result leaves the hash untouched.
type HashMutator func(fields map[string]string) (map[string]string, error)

// Store is the keyed store used as the only persistence substrate.
type Store interface {
	// HSetWithTTL writes hash fields and sets the key expiration in one transaction.
	HSetWithTTL(ctx context.Context, key string, values map[string]string, ttl time.Duration) error
	HSet(ctx context.Context, key string, values map[string]string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	MutateHash(ctx context.Context, key string, ttl time.Duration, fn HashMutator) error

	RPush(ctx context.Context, key string, values ...string) (int64, error)
	LRange(ctx context.Context, key string) ([]string, error)
	MutateList(ctx context.Context, key string, fn ListMutator) error

	// TTL returns the remaining lifetime of key, or zero when the key is absent or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error
	Del(ctx context.Context, keys ...string) error

	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// Subscription is a live pub/sub subscription to a single channel.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
