package ingestion

import (
	"context"
	"fmt"
	"strings"

	"glass/internal/manifest"
	"glass/internal/services"
	"glass/internal/store"
)

// Status returns the lifecycle status of a timeline.
func (m *Manager) Status(ctx context.Context, timelineID string) (store.Status, error) {
	status, ok, err := m.store.Status(ctx, timelineID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound(timelineID)
	}
	return status, nil
}

// FetchManifest returns the stored manifest of a completed timeline. Unknown
// ids yield services.ErrNotFound, queued or running ones
// services.ErrInProgress, and failed ones services.ErrFailed carrying the
// recorded error.
func (m *Manager) FetchManifest(ctx context.Context, timelineID string) (*manifest.Manifest, error) {
	timeline, err := m.store.Get(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	if timeline == nil {
		return nil, notFound(timelineID)
	}
	switch timeline.Status {
	case store.StatusCompleted:
		if !timeline.HasManifest() {
			return nil, services.Wrap(services.ErrInconsistent, "ingestion", "Fetch manifest", fmt.Sprintf("timeline %s completed without a manifest", timelineID), nil)
		}
		parsed, err := manifest.Parse([]byte(timeline.ManifestJSON))
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, "ingestion", "Fetch manifest", timelineID, err)
		}
		return parsed, nil
	case store.StatusFailed:
		message := strings.TrimSpace(timeline.ErrorMessage)
		if timeline.ErrorKind != "" {
			message = fmt.Sprintf("[%s] %s", timeline.ErrorKind, message)
		}
		return nil, services.WrapWithCode(services.ErrFailed, "ingestion", "Fetch manifest", message, timeline.ErrorKind, nil)
	default:
		return nil, services.Wrap(services.ErrInProgress, "ingestion", "Fetch manifest", fmt.Sprintf("timeline %s is %s", timelineID, timeline.Status), nil)
	}
}

func notFound(timelineID string) error {
	return services.Wrap(services.ErrNotFound, "ingestion", "Lookup timeline", fmt.Sprintf("unknown timeline %s", timelineID), nil)
}
