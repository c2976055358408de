package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/sheets"
	"pfm/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending entries (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of entries to export per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before an entry is marked failed (default: 3)
	MaxRetries int

	// RetryDelay is the wait after the first failure; it doubles per attempt (default: 30s)
	RetryDelay time.Duration

	// CleanupInterval is how often to prune synced entries (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old synced entries must be before pruning (default: 30 days)
	CleanupAge time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		RetryDelay:      30 * time.Second,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      30 * 24 * time.Hour,
	}
}

// SyncQueue is the journal as the exporter sees it. *storage.SQLiteRepository
// implements it.
type SyncQueue interface {
	ResetStaleProcessing(ctx context.Context) (int64, error)
	DequeuePending(ctx context.Context, limit int) ([]core.Activity, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkSynced(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, reason string, next time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	RetryFailed(ctx context.Context) (int64, error)
	PruneSynced(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (core.ActivityStats, error)
}

var _ SyncQueue = (*storage.SQLiteRepository)(nil)

const markSyncedAttempts = 3

// SyncProcessor exports journal entries to the activity sheet. It is driven
// both by broker messages (Sync) and by its own polling loop, which catches
// entries whose message never arrived.
type SyncProcessor struct {
	storage SyncQueue
	sheets  sheets.ActivityWriter
	config  SyncProcessorConfig
	logger  *log.Logger

	// markBackoff is the pause before retrying MarkSynced, grown per attempt.
	markBackoff time.Duration

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(queue SyncQueue, writer sheets.ActivityWriter, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		storage:     queue,
		sheets:      writer,
		config:      config,
		logger:      log.Default().WithComponent(log.ComponentWorker),
		markBackoff: 200 * time.Millisecond,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Entries left in processing by a crash go back to pending.
	if n, err := p.storage.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing entries", "error", err)
	} else if n > 0 {
		p.logger.InfoContext(ctx, "Reset stale processing entries", "count", n)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessPending(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessPending(ctx)
		case <-cleanupTicker.C:
			p.cleanupSynced(ctx)
		}
	}
}

// ProcessPending exports one batch of due entries and returns how many were
// exported.
func (p *SyncProcessor) ProcessPending(ctx context.Context) int {
	items, err := p.storage.DequeuePending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue pending activity", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Processing activity batch", "count", len(items))

	synced := 0
	for _, item := range items {
		if ctx.Err() != nil || p.stopping() {
			break
		}
		if err := p.Sync(ctx, item); err == nil {
			synced++
		}
	}
	return synced
}

func (p *SyncProcessor) stopping() bool {
	p.mu.Lock()
	ch := p.stopCh
	p.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Sync claims entry a and appends it to the sheet. An entry someone else has
// already claimed or exported is skipped without error. A failed export is
// rescheduled, or marked failed once MaxRetries attempts are spent.
func (p *SyncProcessor) Sync(ctx context.Context, a core.Activity) error {
	if err := p.storage.MarkProcessing(ctx, a.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	ref, err := p.sheets.AppendActivity(ctx, a)
	if err != nil {
		p.handleFailure(ctx, a, err)
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := p.markSynced(ctx, a.ID); err != nil {
		// The row is in the sheet but still processing in the journal; the
		// next Start resets it and exports it again. The ref finds the copy.
		p.logger.ErrorContext(ctx, "Exported activity but failed to mark it synced",
			append(log.NewFields().WithOperation(log.OpSync).WithErrorType(log.ErrorTypeDatabase).WithError(err).ToSlice(),
				log.FieldActivityID, a.ID, "sheets_ref", ref)...)
		return err
	}
	p.logger.InfoContext(ctx, "Exported activity", log.FieldActivityID, a.ID, "sheets_ref", ref)
	return nil
}

// markSynced retries transient journal errors so an exported row is not
// left in processing.
func (p *SyncProcessor) markSynced(ctx context.Context, id int64) error {
	var err error
	for attempt := 1; attempt <= markSyncedAttempts; attempt++ {
		err = p.storage.MarkSynced(ctx, id)
		if err == nil || errors.Is(err, storage.ErrNotFound) || attempt == markSyncedAttempts {
			return err
		}
		p.logger.WarnContext(ctx, "Retrying mark synced", log.FieldActivityID, id, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(p.markBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func (p *SyncProcessor) handleFailure(ctx context.Context, a core.Activity, syncErr error) {
	attempt := a.Attempts + 1
	p.logger.WarnContext(ctx, "Activity export failed",
		append(log.NewFields().WithOperation(log.OpSync).WithErrorType(log.ErrorTypeUpstream).WithError(syncErr).ToSlice(),
			log.FieldActivityID, a.ID,
			"attempt", attempt)...)

	if attempt >= p.config.MaxRetries {
		if err := p.storage.MarkFailed(ctx, a.ID, syncErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark activity failed", log.FieldActivityID, a.ID, "error", err)
		}
		p.logger.ErrorContext(ctx, "Activity export failed permanently after max retries",
			log.FieldActivityID, a.ID,
			"attempts", attempt)
		return
	}

	next := time.Now().Add(p.retryDelay(a.Attempts))
	if err := p.storage.MarkRetry(ctx, a.ID, syncErr.Error(), next); err != nil {
		p.logger.ErrorContext(ctx, "Failed to schedule activity retry", log.FieldActivityID, a.ID, "error", err)
	}
}

// retryDelay doubles RetryDelay for every earlier attempt, up to an hour.
func (p *SyncProcessor) retryDelay(attempts int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	return min(d, time.Hour)
}

func (p *SyncProcessor) cleanupSynced(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	n, err := p.storage.PruneSynced(ctx, cutoff)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to prune synced activity", "error", err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Pruned synced activity", "count", n)
	}
}

func (p *SyncProcessor) Stats(ctx context.Context) (core.ActivityStats, error) {
	return p.storage.Stats(ctx)
}

// RetryFailed makes every failed entry eligible for export again.
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.storage.RetryFailed(ctx)
}
