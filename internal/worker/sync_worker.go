package worker

import (
	"context"
	"errors"
	"fmt"

	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/log"
	"pfm/internal/services"
	"pfm/internal/storage"
)

// SyncWorker exports journal entries announced on the broker.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	processor *services.SyncProcessor
	logger    *log.Logger

	// RetryFailedOnStart requeues failed entries before the startup pass.
	RetryFailedOnStart bool
}

func NewSyncWorker(storage *storage.SQLiteRepository, processor *services.SyncProcessor) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		processor: processor,
		logger:    log.Default().WithComponent(log.ComponentWorker),
	}
}

// HandleActivity exports the entry named by msg. Only journal read errors are
// returned, so the broker redelivers; a failed export is already rescheduled
// in the journal and the polling pass retries it.
func (w *SyncWorker) HandleActivity(ctx context.Context, msg *events.ActivityMessage) error {
	w.logger.DebugContext(ctx, "Processing activity message",
		log.FieldActivityID, msg.ID,
		"correlation_id", msg.CorrelationID)

	a, err := w.storage.GetActivity(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Activity not in journal, dropping message", log.FieldActivityID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get activity from journal: %w", err)
	}

	if msg.CorrelationID != "" && msg.CorrelationID != a.CorrelationID {
		w.logger.WarnContext(ctx, "Correlation id mismatch, dropping message",
			log.FieldActivityID, msg.ID,
			"message", msg.CorrelationID,
			"journal", a.CorrelationID)
		return nil
	}
	if a.SyncStatus != core.SyncPending {
		w.logger.DebugContext(ctx, "Activity already handled", log.FieldActivityID, a.ID, "status", a.SyncStatus)
		return nil
	}

	if err := w.processor.Sync(ctx, a); err != nil {
		w.logger.WarnContext(ctx, "Activity export deferred", log.FieldActivityID, a.ID, "error", err)
	}
	return nil
}

// StartupSyncCheck exports whatever was left pending while the worker was
// down, in batches until a pass exports nothing.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.RetryFailedOnStart {
		n, err := w.processor.RetryFailed(ctx)
		if err != nil {
			return fmt.Errorf("requeue failed activity: %w", err)
		}
		w.logger.InfoContext(ctx, "Requeued failed activity", log.FieldOperation, log.OpStartup, "count", n)
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := w.processor.ProcessPending(ctx)
		if n == 0 {
			break
		}
		total += n
	}

	st, err := w.storage.Stats(ctx)
	if err != nil {
		return fmt.Errorf("journal stats: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		log.FieldOperation, log.OpStartup,
		"synced", total,
		"pending", st.Pending,
		"failed", st.Failed)
	return nil
}
