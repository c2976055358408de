package metrics

import (
	"context"

	"pfm/internal/core"
)

// Recorder matches services.Recorder.
type Recorder interface {
	Record(ctx context.Context, who core.Identity, resource, action string, resourceID int64, detail string, err error)
}

type countingRecorder struct {
	next    Recorder
	metrics *Metrics
}

// Recording counts every journaled mutation before handing it to next.
func (m *Metrics) Recording(next Recorder) Recorder {
	return countingRecorder{next: next, metrics: m}
}

func (r countingRecorder) Record(ctx context.Context, who core.Identity, resource, action string, resourceID int64, detail string, err error) {
	outcome := core.OutcomeSuccess
	if err != nil {
		outcome = core.OutcomeFailure
	}
	r.metrics.ActivityRecorded.WithLabelValues(resource, action, string(outcome)).Inc()
	r.next.Record(ctx, who, resource, action, resourceID, detail, err)
}
