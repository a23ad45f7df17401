package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/domain/shared"
	"github.com/restohub/backend/internal/infrastructure/telemetry"
)

// errInboxWrite fails a sync in which a record could not be stored
var errInboxWrite = errors.New("records could not be stored in the inbox")

// syncOutcome is posted by a sync goroutine once the adapter call and
// ingestion finish. The completion loop applies it.
type syncOutcome struct {
	log       *integration.SyncLog
	platform  integration.Platform
	err       error
	reason    string
	processed int
	inboxed   int
	details   []integration.SyncErrorDetail
	token     *integration.Token
	duration  time.Duration
}

// startSync moves the integration to INGESTING, records a RUNNING log and
// launches the sync goroutine.
func (m *Manager) startSync(ctx context.Context, id uuid.UUID, syncType integration.SyncType) (*integration.SyncLog, error) {
	handle, ok := m.registry.Get(id)
	if !ok {
		return nil, integration.ErrIntegrationNotActive
	}
	sales, ok := handle.Adapter.(integration.SalesAdapter)
	if !ok {
		return nil, integration.ErrCapabilityNotSupported
	}

	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil, ErrManagerNotRunning
	}
	m.inflight.Add(1)
	completions := m.completions
	m.mu.Unlock()

	launched := false
	defer func() {
		if !launched {
			m.inflight.Done()
		}
	}()

	key := leaseKey(id)
	acquired, err := m.lease.Acquire(ctx, key, m.config.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	if !acquired {
		return nil, integration.ErrIntegrationNotActive
	}
	defer func() {
		if !launched {
			m.releaseLease(key)
		}
	}()

	m.locks.Lock(id)
	integ, syncLog, err := m.beginIngesting(ctx, id, syncType)
	m.locks.Unlock(id)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Sync started",
		zap.String("integration_id", id.String()),
		zap.String("sync_log_id", syncLog.ID.String()),
		zap.String("platform", integ.Platform.String()),
		zap.String("sync_type", string(syncType)))

	started := *syncLog
	launched = true
	go m.runSync(sales, integ, syncLog, completions)
	return &started, nil
}

// beginIngesting performs the CONNECTED to INGESTING compare-and-swap
// against the persisted record. Callers hold the integration lock.
func (m *Manager) beginIngesting(ctx context.Context, id uuid.UUID, syncType integration.SyncType) (*integration.Integration, *integration.SyncLog, error) {
	integ, err := m.integrations.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := integ.BeginIngesting(); err != nil {
		return nil, nil, err
	}

	syncLog, err := integration.NewSyncLog(integ.ID, integ.TenantID, syncType)
	if err != nil {
		return nil, nil, err
	}
	if err := m.syncLogs.Create(ctx, syncLog); err != nil {
		return nil, nil, err
	}
	if err := m.integrations.Save(ctx, integ); err != nil {
		if failErr := syncLog.Fail(m.now(), []integration.SyncErrorDetail{{
			Code:    integration.DetailCodePersistence,
			Message: "failed to persist ingesting status",
		}}); failErr == nil {
			if completeErr := m.syncLogs.Complete(context.Background(), syncLog); completeErr != nil {
				m.logger.Error("Failed to complete sync log", zap.Error(completeErr))
			}
		}
		return nil, nil, err
	}
	return integ, syncLog, nil
}

// runSync calls the adapter and ingests the result. It never writes
// terminal state itself.
func (m *Manager) runSync(adapter integration.SalesAdapter, integ *integration.Integration, syncLog *integration.SyncLog, completions chan<- syncOutcome) {
	defer m.inflight.Done()

	ctx, span := telemetry.StartAdapterSpan(context.Background(), integ.Platform, integ.ID.String(), "fetch_orders",
		telemetry.WithAttribute("sync.type", string(syncLog.SyncType)),
		telemetry.WithAttribute("sync.log_id", syncLog.ID.String()),
	)
	defer span.End()

	started := m.now()
	outcome := syncOutcome{log: syncLog, platform: integ.Platform}

	fetchCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	result, err := adapter.FetchOrders(fetchCtx)
	cancel()

	if err != nil {
		telemetry.RecordError(span, err)
		outcome.err = err
		outcome.reason = m.describeAdapterError(err)
		code := integration.DetailCodeAdapter
		if errors.Is(err, context.DeadlineExceeded) {
			code = integration.DetailCodeTimeout
		}
		outcome.details = []integration.SyncErrorDetail{{Code: code, Message: outcome.reason}}
	} else {
		var ingestErr error
		outcome.processed, outcome.inboxed, outcome.details, ingestErr = m.ingest(ctx, integ, result)
		telemetry.SetAttributes(span,
			"sync.records_fetched", result.Total(),
			"sync.records_processed", outcome.processed,
			"sync.records_inboxed", outcome.inboxed,
		)
		// unstored records stay unacknowledged so the platform redelivers them
		if ingestErr == nil {
			if ingestErr = m.acknowledge(ctx, adapter, result.Receipts); ingestErr != nil {
				outcome.details = append(outcome.details, integration.SyncErrorDetail{
					Code:    integration.DetailCodeAckFailed,
					Message: m.describeAdapterError(ingestErr),
				})
			}
		}
		if ingestErr != nil {
			telemetry.RecordError(span, ingestErr)
			outcome.err = ingestErr
			outcome.reason = m.describeAdapterError(ingestErr)
		}
		if source, ok := adapter.(integration.TokenSource); ok {
			if token, ok := source.CurrentToken(); ok {
				outcome.token = &token
			}
		}
	}
	outcome.duration = m.now().Sub(started)

	completions <- outcome
}

// ingest applies normalized orders through the sink and diverts rejected
// records and sink failures to the inbox. A record that could neither be
// applied nor stored fails the sync.
func (m *Manager) ingest(ctx context.Context, integ *integration.Integration, result *integration.FetchResult) (int, int, []integration.SyncErrorDetail, error) {
	processed, inboxed, lost := 0, 0, 0
	var details []integration.SyncErrorDetail

	divert := func(ref string, payload json.RawMessage, reason string) {
		if err := m.divertToInbox(ctx, integ, ref, payload, reason); err != nil {
			lost++
			details = append(details, integration.SyncErrorDetail{
				Code:      integration.DetailCodeInboxWrite,
				Message:   err.Error(),
				Reference: ref,
			})
			return
		}
		inboxed++
		details = append(details, integration.SyncErrorDetail{
			Code:      integration.DetailCodeInboxed,
			Message:   reason,
			Reference: ref,
		})
	}

	for _, rejected := range result.Rejected {
		divert(rejected.ExternalRef, rejected.Payload, rejected.Reason)
	}

	for i := range result.Orders {
		order := &result.Orders[i]
		if err := m.sink.Ingest(ctx, integ, order); err != nil {
			payload := order.Raw
			if len(payload) == 0 {
				encoded, encErr := json.Marshal(order)
				if encErr != nil {
					lost++
					details = append(details, integration.SyncErrorDetail{
						Code:      integration.DetailCodeInboxWrite,
						Message:   encErr.Error(),
						Reference: order.ExternalID,
					})
					continue
				}
				payload = encoded
			}
			divert(order.ExternalID, payload, err.Error())
			continue
		}
		processed++
	}
	if lost > 0 {
		return processed, inboxed, details, fmt.Errorf("%w: %d of %d records", errInboxWrite, lost, result.Total())
	}
	return processed, inboxed, details, nil
}

// acknowledge confirms receipt to platforms that redeliver until told
// otherwise
func (m *Manager) acknowledge(ctx context.Context, adapter integration.SalesAdapter, receipts []string) error {
	acker, ok := adapter.(integration.OrderAcknowledger)
	if !ok || len(receipts) == 0 {
		return nil
	}
	ackCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	defer cancel()
	if err := acker.AcknowledgeOrders(ackCtx, receipts); err != nil {
		return fmt.Errorf("failed to acknowledge records: %w", err)
	}
	return nil
}

// divertToInbox stores one payload as a PENDING inbox item
func (m *Manager) divertToInbox(ctx context.Context, integ *integration.Integration, ref string, payload json.RawMessage, reason string) error {
	item, err := integration.NewInboxItem(integ.ID, integ.TenantID, integ.Platform, ref, payload, reason)
	if err != nil {
		return err
	}
	if err := m.inbox.Create(ctx, item); err != nil {
		m.logger.Error("Failed to store inbox item",
			zap.String("integration_id", integ.ID.String()),
			zap.String("external_ref", ref),
			zap.Error(err))
		return err
	}
	m.logger.Warn("Record diverted to inbox",
		zap.String("integration_id", integ.ID.String()),
		zap.String("inbox_item_id", item.ID.String()),
		zap.String("external_ref", ref),
		zap.String("reason", reason))
	return nil
}

// completionLoop is the single owner of terminal sync writes
func (m *Manager) completionLoop(completions <-chan syncOutcome, done chan<- struct{}) {
	defer close(done)
	for outcome := range completions {
		m.complete(outcome)
	}
}

// complete writes the terminal log state and the resulting integration
// status. A stopped or deleted integration keeps its status.
func (m *Manager) complete(o syncOutcome) {
	ctx := context.Background()
	id := o.log.IntegrationID

	m.locks.Lock(id)
	defer func() {
		m.locks.Unlock(id)
		m.releaseLease(leaseKey(id))
	}()

	log := m.logger.With(
		zap.String("integration_id", id.String()),
		zap.String("sync_log_id", o.log.ID.String()),
		zap.String("platform", o.platform.String()))

	now := m.now()
	var err error
	if o.err == nil {
		err = o.log.Succeed(now, o.processed, o.details)
	} else {
		err = o.log.Fail(now, o.details)
	}
	if err != nil {
		log.Error("Sync log already finalized", zap.Error(err))
	} else if err := m.syncLogs.Complete(ctx, o.log); err != nil {
		log.Error("Failed to write sync log outcome", zap.Error(err))
	}

	m.metrics.RecordSync(ctx, o.platform, o.log.SyncType, o.log.Status, o.duration)
	if o.err == nil {
		m.metrics.RecordOrders(ctx, o.platform, o.processed, o.inboxed)
	}

	integ, err := m.integrations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			log.Info("Integration removed during sync; log recorded only")
			return
		}
		log.Error("Failed to load integration after sync", zap.Error(err))
		return
	}
	if integ.Status != integration.StatusIngesting {
		log.Info("Integration changed during sync; status left unchanged",
			zap.String("status", integ.Status.String()))
		return
	}

	if o.err == nil {
		_ = integ.CompleteSync(now)
		if o.token != nil {
			integ.UpdateToken(o.token.AccessToken, o.token.RefreshToken, o.token.ExpiresAt)
		}
	} else {
		_ = integ.FailSync(o.reason)
	}
	if err := m.integrations.Save(ctx, integ); err != nil {
		log.Error("Failed to save integration after sync", zap.Error(err))
		return
	}

	if o.err == nil {
		m.registry.SetNextSyncAt(id, *integ.NextSyncAt)
		log.Info("Sync succeeded",
			zap.Int("records_processed", o.processed),
			zap.Int("records_inboxed", o.inboxed),
			zap.Duration("duration", o.duration))
		return
	}
	m.registry.Remove(id)
	log.Warn("Sync failed; integration degraded",
		zap.String("reason", o.reason),
		zap.Duration("duration", o.duration))
}

func (m *Manager) releaseLease(key string) {
	if err := m.lease.Release(context.Background(), key); err != nil {
		m.logger.Warn("Failed to release sync lease", zap.String("key", key), zap.Error(err))
	}
}
