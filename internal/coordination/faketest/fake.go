// Package faketest provides an in-memory coordination.Store for tests
// that need rendezvous semantics (pub/sub, buckets, semaphores) without a
// live Redis, the same way device.Repository implementations in the
// teacher codebase are swapped for in-memory fakes in unit tests.
package faketest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gridwire/meshcore/internal/coordination"
)

// Store is an in-memory coordination.Store. It is safe for concurrent
// use. Expiry (ttl) is tracked but not actively swept — a Get/GetAndDelete
// after expiry returns not-found, matching externally observable Redis
// behaviour without needing a background reaper in tests.
type Store struct {
	mu          sync.Mutex
	values      map[string]entry
	semaphores  map[string]int64
	subscribers map[string][]subscriber
	nextSubID   int
	closed      bool
}

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

type subscriber struct {
	id int
	fn func(context.Context, []byte)
}

// New returns an empty fake store.
func New() *Store {
	return &Store{
		values:      make(map[string]entry),
		semaphores:  make(map[string]int64),
		subscribers: make(map[string][]subscriber),
	}
}

func (s *Store) expired(e entry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

// Publish implements coordination.Store, invoking every subscriber
// synchronously so tests can assert ordering deterministically.
func (s *Store) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	s.mu.Lock()
	subs := append([]subscriber{}, s.subscribers[topic]...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ctx, payload)
	}
	return int64(len(subs)), nil
}

type fakeSubscription struct {
	store *Store
	topic string
	id    int
}

func (f *fakeSubscription) Close() error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	subs := f.store.subscribers[f.topic]
	for i, sub := range subs {
		if sub.id == f.id {
			f.store.subscribers[f.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

// Subscribe implements coordination.Store.
func (s *Store) Subscribe(_ context.Context, topic string, handler func(context.Context, []byte)) (coordination.Subscription, error) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[topic] = append(s.subscribers[topic], subscriber{id: id, fn: handler})
	s.mu.Unlock()
	return &fakeSubscription{store: s, topic: topic, id: id}, nil
}

// Set implements coordination.Store.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	s.values[key] = e
	return nil
}

// Get implements coordination.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || s.expired(e) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// GetAndDelete implements coordination.Store.
func (s *Store) GetAndDelete(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	delete(s.values, key)
	if !ok || s.expired(e) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Delete implements coordination.Store. Like Redis's DEL, it removes
// key regardless of whether it was written as a plain value or a hash —
// hashes live under an internal "hash:" prefix in this fake, so both
// forms are cleared.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.values, "hash:"+key)
	return nil
}

// CreateSemaphore implements coordination.Store.
func (s *Store) CreateSemaphore(_ context.Context, key string, permits int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.semaphores[key]; !ok {
		s.semaphores[key] = permits
	}
	return nil
}

// TryAcquireSemaphore implements coordination.Store.
func (s *Store) TryAcquireSemaphore(ctx context.Context, key string, permits int64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		current := s.semaphores[key]
		if current >= permits {
			s.semaphores[key] = current - permits
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		if time.Now().After(deadline) {
			return coordination.ErrSemaphoreNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// ReleaseSemaphore implements coordination.Store.
func (s *Store) ReleaseSemaphore(_ context.Context, key string, permits int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.semaphores[key] += permits
	return nil
}

// ExpireSemaphore implements coordination.Store. The fake does not sweep
// expired semaphores; it only tracks that the call was made without error.
func (s *Store) ExpireSemaphore(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

// DeleteSemaphore implements coordination.Store.
func (s *Store) DeleteSemaphore(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.semaphores, key)
	return nil
}

// HGet implements coordination.Store.
func (s *Store) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values["hash:"+key]
	if !ok {
		return "", false, nil
	}
	m := decodeHash(e.value)
	v, ok := m[field]
	return v, ok, nil
}

// HGetAll implements coordination.Store.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values["hash:"+key]
	if !ok {
		return map[string]string{}, nil
	}
	return decodeHash(e.value), nil
}

// HSet implements coordination.Store.
func (s *Store) HSet(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hk := "hash:" + key
	m := decodeHash(s.values[hk].value)
	m[field] = value
	s.values[hk] = entry{value: encodeHash(m)}
	return nil
}

// HDel implements coordination.Store.
func (s *Store) HDel(_ context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hk := "hash:" + key
	m := decodeHash(s.values[hk].value)
	delete(m, field)
	s.values[hk] = entry{value: encodeHash(m)}
	return nil
}

// Close implements coordination.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// decodeHash/encodeHash use a trivial delimiter-based encoding — this is
// test-only scaffolding, not a wire format, so it favours simplicity over
// robustness (field/value pairs are expected to be plain identifiers and
// JSON blobs that never themselves contain the delimiters).
const (
	fieldSep = "\x1f"
	kvSep    = "\x1e"
)

func decodeHash(raw []byte) map[string]string {
	m := make(map[string]string)
	if len(raw) == 0 {
		return m
	}
	for _, p := range strings.Split(string(raw), fieldSep) {
		kv := strings.SplitN(p, kvSep, 2)
		if len(kv) == 2 {
			m[kv[0]] = kv[1]
		}
	}
	return m
}

func encodeHash(m map[string]string) []byte {
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+kvSep+v)
	}
	return []byte(strings.Join(pairs, fieldSep))
}

var _ coordination.Store = (*Store)(nil)
