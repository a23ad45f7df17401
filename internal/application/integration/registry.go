package integration

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
)

// Handle is a live adapter held by the Registry
type Handle struct {
	Descriptor integration.Descriptor
	Adapter    integration.Adapter
	NextSyncAt *time.Time
	AddedAt    time.Time
}

// Registry holds the adapters of active integrations, keyed by integration ID.
// The scheduler only visits integrations present here.
type Registry struct {
	factory integration.AdapterFactory
	logger  *zap.Logger

	mu       sync.RWMutex
	handles  map[uuid.UUID]*Handle
	onRemove []func(id uuid.UUID)
}

// NewRegistry creates an empty registry building adapters with factory
func NewRegistry(factory integration.AdapterFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory: factory,
		logger:  logger,
		handles: make(map[uuid.UUID]*Handle),
	}
}

// Add builds the adapter for desc and stores it, replacing any previous
// entry. It returns false when the adapter cannot be constructed.
func (r *Registry) Add(desc integration.Descriptor) bool {
	adapter, err := r.build(desc)
	if err != nil {
		r.logger.Warn("Failed to construct platform adapter",
			zap.String("integration_id", desc.IntegrationID.String()),
			zap.String("platform", desc.Platform.String()),
			zap.Error(err))
		return false
	}
	r.put(desc, adapter)
	return true
}

// put stores an already constructed adapter
func (r *Registry) put(desc integration.Descriptor, adapter integration.Adapter) {
	var next *time.Time
	if desc.NextSyncAt != nil {
		t := *desc.NextSyncAt
		next = &t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[desc.IntegrationID] = &Handle{
		Descriptor: desc,
		Adapter:    adapter,
		NextSyncAt: next,
		AddedAt:    time.Now(),
	}
}

// build calls the factory, converting a panic into an error
func (r *Registry) build(desc integration.Descriptor) (adapter integration.Adapter, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			adapter = nil
			err = fmt.Errorf("adapter construction panicked: %v", rec)
		}
	}()
	return r.factory.NewAdapter(desc)
}

// Remove drops the entry for id. Removing an absent entry is a no-op.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	_, existed := r.handles[id]
	delete(r.handles, id)
	hooks := append([]func(uuid.UUID){}, r.onRemove...)
	r.mu.Unlock()

	if !existed {
		return
	}
	for _, hook := range hooks {
		hook(id)
	}
}

// OnRemove registers a callback invoked after an entry is removed
func (r *Registry) OnRemove(hook func(id uuid.UUID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, hook)
}

// Get returns a copy of the handle for id
func (r *Registry) Get(id uuid.UUID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

// Snapshot returns copies of every handle
func (r *Registry) Snapshot() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, *h)
	}
	return out
}

// SetNextSyncAt records when the integration is next due
func (r *Registry) SetNextSyncAt(id uuid.UUID, next time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[id]; ok {
		h.NextSyncAt = &next
	}
}

// Len returns the number of active integrations
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
