package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pfm/internal/api"
	"pfm/internal/core"
	"pfm/internal/events"
	"pfm/internal/log"
)

// Recorder journals the outcome of a mutation made through the API.
type Recorder interface {
	Record(ctx context.Context, who core.Identity, resource, action string, resourceID int64, detail string, err error)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, core.Identity, string, string, int64, string, error) {}

// logFailure reports a mutation the API refused or never answered. The
// operation is the journal action, so log lines and journal rows match up.
func logFailure(ctx context.Context, logger *log.Logger, who core.Identity, resource, action string, id int64, err error) {
	fields := log.NewFields().WithOperation(action).WithResource(resource, id).WithError(err)
	logger.WarnContext(ctx, "API mutation failed", append(fields.ToSlice(), log.FieldUser, who.Email)...)
}

// ActivityJournal is where activity is kept.
type ActivityJournal interface {
	RecordActivity(ctx context.Context, a core.Activity) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]core.Activity, error)
	Stats(ctx context.Context) (core.ActivityStats, error)
	Close() error
}

// ActivityService writes activity to the journal first and then announces it
// on the broker so the worker can export it.
type ActivityService struct {
	journal   ActivityJournal
	publisher events.Publisher
	newID     func() string
	logger    *log.Logger
}

var _ Recorder = (*ActivityService)(nil)

func NewActivityService(journal ActivityJournal, publisher events.Publisher) *ActivityService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ActivityService{
		journal:   journal,
		publisher: publisher,
		newID:     uuid.NewString,
		logger:    log.Default().WithComponent(log.ComponentActivity),
	}
}

// Record never fails the caller: journal and broker errors are only logged.
func (s *ActivityService) Record(ctx context.Context, who core.Identity, resource, action string, resourceID int64, detail string, opErr error) {
	a := core.Activity{
		CorrelationID: s.newID(),
		Actor:         who.Email,
		Resource:      resource,
		Action:        action,
		ResourceID:    resourceID,
		Outcome:       core.OutcomeSuccess,
		Detail:        detail,
	}
	if opErr != nil {
		a.Outcome = core.OutcomeFailure
		if a.Detail != "" {
			a.Detail += ": "
		}
		a.Detail += api.Message(opErr)
	}

	id, err := s.journal.RecordActivity(ctx, a)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to journal activity",
			"error", err,
			log.FieldResource, resource,
			log.FieldOperation, action)
		return
	}

	if err := s.publisher.PublishActivity(ctx, id, a.CorrelationID); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish activity, worker will pick it up on its next pass",
			"error", err,
			log.FieldActivityID, id)
	}
}

// Recent returns the newest journal entries first.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.journal.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}

func (s *ActivityService) Stats(ctx context.Context) (core.ActivityStats, error) {
	return s.journal.Stats(ctx)
}

// Close closes both the journal and the publisher.
func (s *ActivityService) Close() error {
	var errs []error
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
