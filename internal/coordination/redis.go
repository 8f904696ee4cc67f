package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gridwire/meshcore/internal/infrastructure/config"
)

// Logger is the minimal logging surface this package needs. Every
// component package in meshcore defines its own copy of this interface
// rather than sharing one, matching how the teacher scopes Logger per
// package (device.Logger, automation.Logger, ...).
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RedisStore implements Store over a go-redis v9 client.
type RedisStore struct {
	client *redis.Client
	logger Logger
}

// Connect dials Redis using cfg and verifies connectivity with a ping.
//
// Parameters:
//   - ctx: context bounding the initial ping
//   - cfg: connection settings from config.yaml
//
// Returns:
//   - *RedisStore: connected store ready for use
//   - error: if the ping fails
func Connect(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeoutDuration(),
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeoutDuration())
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client, logger: noopLogger{}}, nil
}

// SetLogger installs a logger for subscription panic recovery and
// diagnostic warnings. Safe to call before Subscribe is used; not safe
// to call concurrently with in-flight Subscribe calls.
func (s *RedisStore) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// HealthCheck verifies the connection is alive.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)

// defaultPollInterval bounds how often TryAcquireSemaphore retries the
// acquire script while waiting for permits to free up.
const defaultPollInterval = 50 * time.Millisecond
