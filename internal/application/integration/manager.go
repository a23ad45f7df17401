// Package integration contains the application services that manage
// platform integrations: the Manager owning the lifecycle and sync
// execution of active connections, and the InboxService reprocessing
// records that could not be ingested automatically.
package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/domain/shared"
	"github.com/restohub/backend/internal/infrastructure/logger"
)

// ErrManagerNotRunning is returned when a sync is requested before Start or after Stop
var ErrManagerNotRunning = errors.New("integration: manager is not running")

// ManagerConfig tunes sync execution
type ManagerConfig struct {
	// AdapterTimeout bounds every call into a platform adapter
	AdapterTimeout time.Duration
	// LeaseTTL bounds how long a sync claim outlives a crashed holder
	LeaseTTL time.Duration
	// CompletionBuffer is the capacity of the completion channel
	CompletionBuffer int
}

// DefaultManagerConfig returns the default execution settings
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		AdapterTimeout:   30 * time.Second,
		LeaseTTL:         10 * time.Minute,
		CompletionBuffer: 64,
	}
}

// ManagerDeps are the collaborators of the Manager. Sink, Lease and
// Metrics are optional.
type ManagerDeps struct {
	Integrations integration.IntegrationRepository
	SyncLogs     integration.SyncLogRepository
	Inbox        integration.InboxRepository
	Factory      integration.AdapterFactory
	Sink         integration.OrderSink
	Lease        integration.SyncLease
	Metrics      SyncMetrics
}

// Manager owns the lifecycle of platform integrations. It keeps the
// Registry of live adapters consistent with persisted status, runs syncs
// asynchronously and records every attempt.
type Manager struct {
	integrations integration.IntegrationRepository
	syncLogs     integration.SyncLogRepository
	inbox        integration.InboxRepository
	factory      integration.AdapterFactory
	sink         integration.OrderSink
	lease        integration.SyncLease
	metrics      SyncMetrics

	registry *Registry
	locks    *KeyedMutex
	config   ManagerConfig
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	isRunning   bool
	completions chan syncOutcome
	done        chan struct{}
	inflight    sync.WaitGroup
}

// NewManager creates a new Manager
func NewManager(deps ManagerDeps, config ManagerConfig, logger *zap.Logger) (*Manager, error) {
	if deps.Integrations == nil {
		return nil, errors.New("integration: integration repository is required")
	}
	if deps.SyncLogs == nil {
		return nil, errors.New("integration: sync log repository is required")
	}
	if deps.Inbox == nil {
		return nil, errors.New("integration: inbox repository is required")
	}
	if deps.Factory == nil {
		return nil, errors.New("integration: adapter factory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = NewLoggingOrderSink(logger)
	}
	if deps.Lease == nil {
		deps.Lease = integration.NewLocalSyncLease(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = noopSyncMetrics{}
	}

	defaults := DefaultManagerConfig()
	if config.AdapterTimeout <= 0 {
		config.AdapterTimeout = defaults.AdapterTimeout
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = defaults.LeaseTTL
	}
	if config.CompletionBuffer <= 0 {
		config.CompletionBuffer = defaults.CompletionBuffer
	}

	m := &Manager{
		integrations: deps.Integrations,
		syncLogs:     deps.SyncLogs,
		inbox:        deps.Inbox,
		factory:      deps.Factory,
		sink:         deps.Sink,
		lease:        deps.Lease,
		metrics:      deps.Metrics,
		registry:     NewRegistry(deps.Factory, logger),
		locks:        NewKeyedMutex(),
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
	m.registry.OnRemove(func(id uuid.UUID) {
		m.logger.Info("Integration removed from registry", zap.String("integration_id", id.String()))
	})
	return m, nil
}

// Registry returns the registry of active integrations
func (m *Manager) Registry() *Registry {
	return m.registry
}

// ActiveIntegrations returns how many integrations the Registry holds
func (m *Manager) ActiveIntegrations() int {
	return m.registry.Len()
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start launches the completion loop. Syncs can be triggered only while running.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return errors.New("integration: manager already running")
	}
	m.completions = make(chan syncOutcome, m.config.CompletionBuffer)
	m.done = make(chan struct{})
	m.isRunning = true

	go m.completionLoop(m.completions, m.done)
	m.logger.Info("Integration manager started",
		zap.Duration("adapter_timeout", m.config.AdapterTimeout))
	return nil
}

// Stop rejects new syncs, waits for in-flight syncs to record their
// outcome and shuts the completion loop down.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	completions, done := m.completions, m.done
	m.mu.Unlock()

	waitDone := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(completions)
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
		return fmt.Errorf("integration: waiting for in-flight syncs: %w", ctx.Err())
	}

	select {
	case <-done:
		m.logger.Info("Integration manager stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("integration: waiting for completion loop: %w", ctx.Err())
	}
}

// IsRunning reports whether the manager accepts syncs
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// Restore rebuilds the Registry from persisted state. CONNECTED
// integrations are re-added. Integrations left INGESTING by a previous
// process are degraded and their RUNNING logs failed, unless their sync
// lease is still held by a live process.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	items, err := m.integrations.FindByStatus(ctx, integration.StatusConnected, integration.StatusIngesting)
	if err != nil {
		return 0, fmt.Errorf("failed to load active integrations: %w", err)
	}

	restored := 0
	for i := range items {
		integ := &items[i]
		m.locks.Lock(integ.ID)
		ok := m.restoreOne(ctx, integ)
		m.locks.Unlock(integ.ID)
		if ok {
			restored++
		}
	}

	m.logger.Info("Integrations restored",
		zap.Int("restored", restored),
		zap.Int("candidates", len(items)))
	return restored, nil
}

func (m *Manager) restoreOne(ctx context.Context, integ *integration.Integration) bool {
	log := m.logger.With(
		zap.String("integration_id", integ.ID.String()),
		zap.String("platform", integ.Platform.String()))

	if integ.Status == integration.StatusIngesting {
		// a live lease means another replica is still running this sync
		key := leaseKey(integ.ID)
		acquired, err := m.lease.Acquire(ctx, key, m.config.LeaseTTL)
		if err != nil {
			log.Error("Failed to check sync lease; leaving integration ingesting", zap.Error(err))
			return false
		}
		if !acquired {
			log.Info("Sync held by a live holder; left ingesting")
			return false
		}
		defer m.releaseLease(key)

		m.interruptRunningLogs(ctx, integ.ID)
		integ.MarkDegraded("sync interrupted by restart")
		if err := m.integrations.Save(ctx, integ); err != nil {
			log.Error("Failed to degrade interrupted integration", zap.Error(err))
		}
		log.Warn("Integration was ingesting at shutdown; marked degraded")
		return false
	}

	if !m.registry.Add(integ.Descriptor()) {
		integ.MarkDegraded("adapter could not be constructed")
		if err := m.integrations.Save(ctx, integ); err != nil {
			log.Error("Failed to degrade integration", zap.Error(err))
		}
		return false
	}
	return true
}

func (m *Manager) interruptRunningLogs(ctx context.Context, integrationID uuid.UUID) {
	running, err := m.syncLogs.FindRunning(ctx, integrationID)
	if err != nil {
		m.logger.Error("Failed to load running sync logs",
			zap.String("integration_id", integrationID.String()), zap.Error(err))
		return
	}
	for i := range running {
		entry := &running[i]
		if err := entry.Fail(m.now(), []integration.SyncErrorDetail{{
			Code:    integration.DetailCodeInterrupted,
			Message: "sync interrupted by restart",
		}}); err != nil {
			continue
		}
		if err := m.syncLogs.Complete(ctx, entry); err != nil {
			m.logger.Error("Failed to fail interrupted sync log",
				zap.String("sync_log_id", entry.ID.String()), zap.Error(err))
		}
	}
}

// ---------------------------------------------------------------------------
// Integration CRUD
// ---------------------------------------------------------------------------

// Connect attaches a platform to a tenant
func (m *Manager) Connect(ctx context.Context, tenantID uuid.UUID, req ConnectRequest) (*integration.Integration, error) {
	if !req.Platform.IsValid() {
		return nil, integration.ErrUnknownPlatform
	}

	exists, err := m.integrations.ExistsForPlatform(ctx, tenantID, req.Platform, req.SubTenantID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, integration.ErrIntegrationExists
	}

	integ, err := integration.NewIntegration(tenantID, req.SubTenantID, req.Platform, req.Credentials, req.SyncFrequencyMinutes)
	if err != nil {
		return nil, err
	}
	if err := m.integrations.Create(ctx, integ); err != nil {
		return nil, err
	}

	m.logger.Info("Integration connected",
		zap.String("integration_id", integ.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("platform", integ.Platform.String()),
		zap.String("status", integ.Status.String()),
		logger.CredentialFields(req.Credentials))
	return integ, nil
}

// UpdateCredentials replaces the credentials of an integration. The
// integration returns to CONFIGURED and leaves the Registry until tested.
func (m *Manager) UpdateCredentials(ctx context.Context, tenantID, id uuid.UUID, req UpdateCredentialsRequest) (*integration.Integration, error) {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	integ, err := m.integrations.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := integ.SetCredentials(req.Credentials); err != nil {
		return nil, err
	}
	if req.SyncFrequencyMinutes != nil {
		if err := integ.SetSyncFrequency(*req.SyncFrequencyMinutes); err != nil {
			return nil, err
		}
	}
	if err := m.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}
	m.registry.Remove(id)
	m.logger.Info("Integration credentials updated",
		zap.String("integration_id", id.String()),
		zap.String("status", integ.Status.String()),
		logger.CredentialFields(req.Credentials))
	return integ, nil
}

// Disconnect removes an integration from the Registry and deletes it.
// An in-flight sync still records its log.
func (m *Manager) Disconnect(ctx context.Context, tenantID, id uuid.UUID) error {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	if _, err := m.integrations.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return err
	}
	m.registry.Remove(id)
	if err := m.integrations.Delete(ctx, id); err != nil {
		return err
	}

	m.logger.Info("Integration disconnected",
		zap.String("integration_id", id.String()),
		zap.String("tenant_id", tenantID.String()))
	return nil
}

// Get returns one of the tenant's integrations
func (m *Manager) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error) {
	return m.integrations.FindByIDForTenant(ctx, tenantID, id)
}

// List returns the tenant's integrations
func (m *Manager) List(ctx context.Context, tenantID uuid.UUID) ([]integration.Integration, error) {
	return m.integrations.FindByTenant(ctx, tenantID)
}

// Catalog lists every supported platform with the tenant's integrations for it
func (m *Manager) Catalog(ctx context.Context, tenantID uuid.UUID) ([]CatalogEntryResponse, error) {
	items, err := m.integrations.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[integration.Platform][]CatalogConnection)
	for _, integ := range items {
		byPlatform[integ.Platform] = append(byPlatform[integ.Platform], CatalogConnection{
			IntegrationID: integ.ID,
			SubTenantID:   integ.SubTenantID,
			Status:        integ.Status,
		})
	}

	platforms := integration.Catalog()
	entries := make([]CatalogEntryResponse, 0, len(platforms))
	for _, info := range platforms {
		connections := byPlatform[info.Platform]
		if connections == nil {
			connections = []CatalogConnection{}
		}
		entries = append(entries, CatalogEntryResponse{
			Platform:                 info.Platform,
			Type:                     info.Type,
			DisplayName:              info.DisplayName,
			RequiredCredentialFields: info.RequiredCredentialFields,
			AdapterAvailable:         m.factory.Supports(info.Platform),
			Integrations:             connections,
		})
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Test & Toggle
// ---------------------------------------------------------------------------

// Test verifies the platform is reachable with the stored credentials. A
// reachable platform moves the integration to CONNECTED and into the
// Registry; an unreachable one to DEGRADED. Adapter failures are reported
// in the result, not as an error.
func (m *Manager) Test(ctx context.Context, tenantID, id uuid.UUID) (*TestResult, error) {
	integ, err := m.integrations.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !integ.HasCredentials() {
		info, _ := integration.LookupPlatform(integ.Platform)
		return nil, integration.NewCredentialError(integ.Platform, info.RequiredCredentialFields)
	}

	adapter, err := m.registry.build(integ.Descriptor())
	if err != nil {
		if errors.Is(err, integration.ErrAdapterNotAvailable) {
			return nil, integration.NewConnectionError(
				fmt.Sprintf("no adapter available for platform %s", integ.Platform), err)
		}
		return nil, integration.NewConnectionError("failed to configure platform adapter", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	testErr := adapter.TestConnection(callCtx)
	cancel()

	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	integ, err = m.integrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if testErr != nil {
		message := m.describeAdapterError(testErr)
		m.logger.Warn("Integration connection test failed",
			zap.String("integration_id", id.String()),
			zap.String("platform", integ.Platform.String()),
			zap.Error(testErr))
		if integ.Status != integration.StatusIngesting {
			integ.MarkDegraded(message)
			if err := m.integrations.Save(ctx, integ); err != nil {
				return nil, err
			}
			m.registry.Remove(id)
		}
		return &TestResult{Connected: false, Status: integ.Status, Message: message}, nil
	}

	if integ.Status == integration.StatusIngesting {
		return &TestResult{Connected: true, Status: integ.Status, Message: "connection verified"}, nil
	}

	if source, ok := adapter.(integration.TokenSource); ok {
		if token, ok := source.CurrentToken(); ok {
			integ.UpdateToken(token.AccessToken, token.RefreshToken, token.ExpiresAt)
		}
	}
	if err := integ.MarkConnected(m.now()); err != nil {
		return nil, err
	}
	if err := m.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}
	m.registry.put(integ.Descriptor(), adapter)

	m.logger.Info("Integration connection verified",
		zap.String("integration_id", id.String()),
		zap.String("platform", integ.Platform.String()))
	return &TestResult{Connected: true, Status: integ.Status, Message: "connection verified"}, nil
}

// Toggle stops an active integration or reactivates an inactive one.
// CONNECTED and INGESTING integrations stop; a sync already in flight
// records its log but leaves the integration STOPPED. Any other status is
// re-added to the Registry and becomes CONNECTED.
func (m *Manager) Toggle(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error) {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	integ, err := m.integrations.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if integ.IsActive() {
		integ.Stop()
		if err := m.integrations.Save(ctx, integ); err != nil {
			return nil, err
		}
		m.registry.Remove(id)
		m.logger.Info("Integration stopped", zap.String("integration_id", id.String()))
		return integ, nil
	}

	if !integ.HasCredentials() {
		info, _ := integration.LookupPlatform(integ.Platform)
		return nil, integration.NewCredentialError(integ.Platform, info.RequiredCredentialFields)
	}
	if !m.registry.Add(integ.Descriptor()) {
		return nil, integration.NewConnectionError(
			fmt.Sprintf("adapter for platform %s could not be constructed", integ.Platform), nil)
	}
	if err := integ.MarkConnected(m.now()); err != nil {
		m.registry.Remove(id)
		return nil, err
	}
	if err := m.integrations.Save(ctx, integ); err != nil {
		m.registry.Remove(id)
		return nil, err
	}
	m.registry.SetNextSyncAt(id, *integ.NextSyncAt)

	m.logger.Info("Integration activated", zap.String("integration_id", id.String()))
	return integ, nil
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// TriggerSync starts a manual sync and returns its RUNNING log. The
// outcome is observed through the log and the integration status.
func (m *Manager) TriggerSync(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncLog, error) {
	if _, err := m.integrations.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return m.startSync(ctx, id, integration.SyncTypeManual)
}

// RunDueSyncs starts a scheduled sync for every registered sales
// integration whose next sync is due. It returns the number started.
func (m *Manager) RunDueSyncs(ctx context.Context, now time.Time) int {
	handles := m.registry.Snapshot()
	m.metrics.RecordActive(ctx, len(handles))

	started := 0
	for _, handle := range handles {
		if _, ok := handle.Adapter.(integration.SalesAdapter); !ok {
			continue
		}
		if handle.NextSyncAt != nil && handle.NextSyncAt.After(now) {
			continue
		}

		id := handle.Descriptor.IntegrationID
		if _, err := m.startSync(ctx, id, integration.SyncTypeScheduled); err != nil {
			if errors.Is(err, integration.ErrIntegrationNotActive) {
				m.logger.Debug("Skipping scheduled sync; integration busy or inactive",
					zap.String("integration_id", id.String()))
				continue
			}
			m.logger.Warn("Failed to start scheduled sync",
				zap.String("integration_id", id.String()), zap.Error(err))
			continue
		}
		started++
	}
	return started
}

// ListSyncLogs returns the sync history of one of the tenant's integrations
func (m *Manager) ListSyncLogs(ctx context.Context, tenantID, id uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLog, int64, error) {
	if _, err := m.integrations.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return nil, 0, err
	}
	filter.IntegrationID = id
	filter.Normalize()
	return m.syncLogs.FindByIntegration(ctx, filter)
}

// FetchOrders pulls current orders from a sales platform without ingesting them
func (m *Manager) FetchOrders(ctx context.Context, tenantID, id uuid.UUID) (*integration.FetchResult, error) {
	if _, err := m.integrations.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	handle, ok := m.registry.Get(id)
	if !ok {
		return nil, integration.ErrIntegrationNotActive
	}
	sales, ok := handle.Adapter.(integration.SalesAdapter)
	if !ok {
		return nil, integration.ErrCapabilityNotSupported
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	defer cancel()
	result, err := sales.FetchOrders(callCtx)
	if err != nil {
		return nil, m.adapterError(err)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// describeAdapterError renders an adapter failure for logs and status
func (m *Manager) describeAdapterError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("adapter call timed out after %s", m.config.AdapterTimeout)
	}
	return err.Error()
}

// adapterError converts an adapter failure into a ConnectionError, keeping
// domain errors raised by the adapter itself.
func (m *Manager) adapterError(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return integration.NewConnectionError(m.describeAdapterError(err), err)
}

func leaseKey(id uuid.UUID) string {
	return "sync:" + id.String()
}
