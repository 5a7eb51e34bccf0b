package ingestion

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"glass/internal/logging"
	"glass/internal/services"
)

// claim reserves timelineID for the caller. The returned release function
// must be called once the run is over.
func (m *Manager) claim(timelineID string) (func(), error) {
	m.mu.Lock()
	if _, busy := m.active[timelineID]; busy {
		m.mu.Unlock()
		return nil, inProgress(timelineID)
	}
	m.active[timelineID] = struct{}{}
	m.mu.Unlock()

	unmark := func() {
		m.mu.Lock()
		delete(m.active, timelineID)
		m.mu.Unlock()
	}

	lockDir := m.cfg.LockDir()
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		unmark()
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fileLock := flock.New(filepath.Join(lockDir, timelineID+".lock"))
	locked, err := fileLock.TryLock()
	if err != nil {
		unmark()
		return nil, fmt.Errorf("lock timeline %s: %w", timelineID, err)
	}
	if !locked {
		unmark()
		return nil, inProgress(timelineID)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			m.logger.Warn("release timeline lock failed", logging.String(logging.FieldTimelineID, timelineID), logging.Error(err))
		}
		unmark()
	}, nil
}

func inProgress(timelineID string) error {
	return services.Wrap(services.ErrInProgress, "ingestion", "Claim timeline", fmt.Sprintf("timeline %s is already being ingested", timelineID), nil)
}
