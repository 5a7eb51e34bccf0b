package ingestion

import (
	"context"
	"errors"
	"fmt"

	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/services"
	"glass/internal/store"
)

const recoverReason = "recovered after interrupted run"

// Recover moves timelines left in processing by a dead process back to
// pending. Timelines whose lock is still held are running and stay put.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	stuck, err := m.store.List(ctx, store.StatusProcessing)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, timeline := range stuck {
		release, err := m.claim(timeline.ID)
		if err != nil {
			if errors.Is(err, services.ErrInProgress) {
				continue
			}
			return recovered, err
		}
		err = m.store.Release(ctx, timeline.ID, recoverReason)
		release()
		if err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				continue
			}
			return recovered, err
		}
		recovered++
		logging.WithTimeline(m.logger, timeline.ID).Info("recovered interrupted timeline",
			logging.String(logging.FieldEventType, "timeline_recovered"))
	}
	return recovered, nil
}

// Retry re-runs a failed or pending timeline from its recorded source.
func (m *Manager) Retry(ctx context.Context, timelineID string) (*manifest.Manifest, error) {
	timeline, err := m.store.Get(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, notFound(timelineID)
	}
	switch timeline.Status {
	case store.StatusFailed:
		if _, err := m.store.RetryFailed(ctx, timelineID); err != nil {
			return nil, err
		}
	case store.StatusPending:
	case store.StatusProcessing:
		return nil, inProgress(timelineID)
	default:
		return nil, services.Wrap(services.ErrValidation, "ingestion", "Retry", fmt.Sprintf("timeline %s is %s", timelineID, timeline.Status), nil)
	}
	return m.Ingest(ctx, timeline.Source, timelineID)
}
