package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/restohub/backend/internal/domain/integration"
)

const defaultLeaseKeyPrefix = "resto:sync-lease:"

// releaseScript deletes the key only while it still carries our owner token,
// so an expired claim taken over by another replica is never dropped.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSyncLease implements integration.SyncLease using Redis.
// Replicas sharing the same Redis never sync one integration concurrently.
type RedisSyncLease struct {
	client    *redis.Client
	keyPrefix string
	owner     string

	mu     sync.Mutex
	tokens map[string]string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSyncLease connects to Redis and creates a lease backed by it
func NewRedisSyncLease(cfg RedisConfig) (*RedisSyncLease, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSyncLeaseWithClient(client, defaultLeaseKeyPrefix), nil
}

// NewRedisSyncLeaseWithClient creates a lease with an existing Redis client
func NewRedisSyncLeaseWithClient(client *redis.Client, keyPrefix string) *RedisSyncLease {
	if keyPrefix == "" {
		keyPrefix = defaultLeaseKeyPrefix
	}
	return &RedisSyncLease{
		client:    client,
		keyPrefix: keyPrefix,
		owner:     uuid.NewString(),
		tokens:    make(map[string]string),
	}
}

// Acquire claims key with SET NX and a TTL in a single atomic operation
func (l *RedisSyncLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := l.owner + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release drops the claim on key if this holder still owns it
func (l *RedisSyncLease) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release sync lease: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisSyncLease) Close() error {
	return l.client.Close()
}

var _ integration.SyncLease = (*RedisSyncLease)(nil)
