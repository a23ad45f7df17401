package cache

import (
	"sync"
	"time"

	"github.com/restohub/backend/internal/domain/integration"
)

// InMemorySyncLease implements integration.SyncLease in process memory and
// sweeps expired claims in the background.
// This is suitable for single-instance deployments and testing.
type InMemorySyncLease struct {
	*integration.LocalSyncLease

	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemorySyncLease creates a new in-memory sync lease.
// It starts a background goroutine to clean up expired leases.
func NewInMemorySyncLease() *InMemorySyncLease {
	l := &InMemorySyncLease{
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	l.LocalSyncLease = integration.NewLocalSyncLease(func() time.Time { return l.now() })

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemorySyncLease) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemorySyncLease) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup removes expired leases
func (l *InMemorySyncLease) cleanup() {
	l.Sweep()
}

var _ integration.SyncLease = (*InMemorySyncLease)(nil)
