package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/infrastructure/config"
)

// SyncLeaseFactory creates sync leases based on configuration
type SyncLeaseFactory struct {
	redisConfig           config.RedisConfig
	backend               string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SyncLeaseFactoryOption is a functional option for configuring the factory
type SyncLeaseFactoryOption func(*SyncLeaseFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SyncLeaseFactoryOption {
	return func(f *SyncLeaseFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory lease
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) SyncLeaseFactoryOption {
	return func(f *SyncLeaseFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSyncLeaseFactory creates a new factory for the given backend
func NewSyncLeaseFactory(backend string, redisCfg config.RedisConfig, opts ...SyncLeaseFactoryOption) *SyncLeaseFactory {
	f := &SyncLeaseFactory{
		redisConfig:           redisCfg,
		backend:               backend,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// createRedisLease creates a Redis-backed lease
func (f *SyncLeaseFactory) createRedisLease() (*RedisSyncLease, error) {
	lease, err := NewRedisSyncLease(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis sync lease: %w", err)
	}
	return lease, nil
}

// CreateLease creates the configured lease. The returned closer releases
// its resources.
// WARNING: in-memory leases do not exclude syncs running on other replicas.
func (f *SyncLeaseFactory) CreateLease() (integration.SyncLease, func() error, error) {
	if f.backend != config.LeaseBackendRedis {
		lease := NewInMemorySyncLease()
		f.logger.Info("Using in-memory sync lease")
		return lease, lease.Close, nil
	}

	lease, err := f.createRedisLease()
	if err == nil {
		f.logger.Info("Using Redis sync lease")
		return lease, lease.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for sync lease but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory sync lease. "+
		"Replicas may sync the same integration concurrently.",
		zap.Error(err),
	)
	memory := NewInMemorySyncLease()
	return memory, memory.Close, nil
}
