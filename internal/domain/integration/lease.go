package integration

import (
	"context"
	"sync"
	"time"
)

// SyncLease is a short-lived exclusive claim on one integration's sync.
// Backends shared across replicas keep two processes from ingesting the
// same integration at once.
type SyncLease interface {
	// Acquire returns false when another holder owns the key
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim held by this holder. Releasing a key that is
	// not held is not an error.
	Release(ctx context.Context, key string) error
}

// LocalSyncLease is a SyncLease whose claims exclude holders within one
// process only
type LocalSyncLease struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

// NewLocalSyncLease creates a LocalSyncLease. A nil clock uses time.Now.
func NewLocalSyncLease(now func() time.Time) *LocalSyncLease {
	if now == nil {
		now = time.Now
	}
	return &LocalSyncLease{
		claims: make(map[string]time.Time),
		now:    now,
	}
}

// Acquire claims key for ttl. It returns false while another claim is live.
func (l *LocalSyncLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.claims[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	l.claims[key] = now.Add(ttl)
	return true, nil
}

// Release drops the claim on key
func (l *LocalSyncLease) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claims, key)
	return nil
}

// Sweep drops expired claims
func (l *LocalSyncLease) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, expiresAt := range l.claims {
		if !now.Before(expiresAt) {
			delete(l.claims, key)
		}
	}
}

// Size returns the number of tracked claims
func (l *LocalSyncLease) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claims)
}

var _ SyncLease = (*LocalSyncLease)(nil)
