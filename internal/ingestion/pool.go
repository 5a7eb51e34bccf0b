package ingestion

import (
	"context"

	"glass/internal/logging"
	"glass/internal/store"
)

// Submit claims the timeline, records it as pending and schedules it on the
// worker pool. The claim is held while the run waits for a slot, so a second
// Submit or Ingest for the same id fails with services.ErrInProgress until
// the queued run ends. ctx bounds the run itself; callers pass a long-lived
// context.
func (m *Manager) Submit(ctx context.Context, source, timelineID string) (string, error) {
	abs, timelineID, err := resolveRequest(source, timelineID)
	if err != nil {
		return "", err
	}
	release, err := m.claim(timelineID)
	if err != nil {
		return "", err
	}

	status, known, err := m.store.Status(ctx, timelineID)
	if err != nil {
		release()
		return "", err
	}
	if known && status == store.StatusProcessing {
		release()
		return "", inProgress(timelineID)
	}
	if _, err := m.store.Enqueue(ctx, timelineID, abs); err != nil {
		release()
		return "", err
	}

	logger := logging.WithTimeline(m.logger, timelineID)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer release()
		if err := m.pool.Acquire(ctx, 1); err != nil {
			logger.Info("queued ingestion abandoned", logging.Error(err))
			return
		}
		defer m.pool.Release(1)
		if _, err := m.execute(ctx, abs, timelineID); err != nil {
			logger.Debug("submitted ingestion ended with error", logging.Error(err))
		}
	}()
	logger.Info("ingestion queued", logging.String(logging.FieldEventType, "ingestion_queued"), logging.String("source", abs))
	return timelineID, nil
}
