// Package coordination provides the distributed primitives the rest of
// meshcore is built on: topic pub/sub, get-and-delete buckets, and
// counting semaphores, all backed by a shared Redis-compatible store.
//
// No component outside this package talks to Redis directly — device,
// product, configstore, and dispatch all depend only on the Store
// interface, so they can be tested against faketest.Store without a
// live broker.
//
// Thread Safety:
//   - A *RedisStore is safe for concurrent use from multiple goroutines;
//     it is a thin wrapper over go-redis, which is itself goroutine-safe.
package coordination

import (
	"context"
	"errors"
	"time"
)

// ErrSemaphoreNotAcquired is returned by TryAcquireSemaphore when the
// requested permits could not be obtained before timeout elapsed.
var ErrSemaphoreNotAcquired = errors.New("coordination: semaphore not acquired before timeout")

// ErrKeyNotFound names the "key has no value" condition. Get and
// GetAndDelete do not return it: they report a missing key through their
// boolean "found" result with a nil error.
var ErrKeyNotFound = errors.New("coordination: key not found")

// Subscription represents an active topic subscription. Closing it stops
// delivery and releases the underlying connection.
type Subscription interface {
	Close() error
}

// Store is the coordination primitive surface every other meshcore
// package depends on. It is intentionally narrow: just enough to
// implement rendezvous-style request/reply, session state, and
// hierarchical config storage, without leaking Redis-specific types.
type Store interface {
	// Publish sends payload to every subscriber of topic and returns how
	// many subscribers received it. A Redis PUBLISH reply is exactly this
	// count, which is what the original's accept-topic fan-out check
	// depends on (zero subscribers means nobody is listening for this
	// device's session server).
	Publish(ctx context.Context, topic string, payload []byte) (subscribers int64, err error)

	// Subscribe invokes handler for every message published to topic
	// until ctx is cancelled or the returned Subscription is closed.
	// handler panics are recovered and logged by the implementation, not
	// propagated to the publisher.
	Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, payload []byte)) (Subscription, error)

	// Set stores value at key with the given time-to-live. A zero ttl
	// means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value at key, or found=false if it does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// GetAndDelete atomically reads and removes the value at key.
	GetAndDelete(ctx context.Context, key string) (value []byte, found bool, err error)

	// Delete removes key. It is not an error if key does not exist.
	Delete(ctx context.Context, key string) error

	// CreateSemaphore initialises key to hold permits available permits,
	// if it does not already exist. Re-creating an existing semaphore is
	// a no-op — callers that just want to make sure it exists before
	// acquiring should always call this first.
	CreateSemaphore(ctx context.Context, key string, permits int64) error

	// TryAcquireSemaphore attempts to decrement key's permit count by
	// permits, retrying until it succeeds or timeout elapses. Returns
	// ErrSemaphoreNotAcquired (not a plain false) on timeout, so callers
	// can errors.Is against it.
	TryAcquireSemaphore(ctx context.Context, key string, permits int64, timeout time.Duration) error

	// ReleaseSemaphore increments key's permit count by permits.
	ReleaseSemaphore(ctx context.Context, key string, permits int64) error

	// ExpireSemaphore sets or refreshes key's time-to-live.
	ExpireSemaphore(ctx context.Context, key string, ttl time.Duration) error

	// DeleteSemaphore removes key entirely, regardless of remaining permits.
	DeleteSemaphore(ctx context.Context, key string) error

	// HGet returns a single field from the hash at key.
	HGet(ctx context.Context, key, field string) (value string, found bool, err error)

	// HGetAll returns every field/value pair in the hash at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet sets a single field in the hash at key.
	HSet(ctx context.Context, key, field, value string) error

	// HDel removes a single field from the hash at key.
	HDel(ctx context.Context, key, field string) error

	// Close releases any underlying connections.
	Close() error
}
