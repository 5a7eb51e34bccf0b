package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Get fetches a timeline record. It returns nil, nil when the id is unknown.
func (s *Store) Get(ctx context.Context, timelineID string) (*Timeline, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timelines WHERE timeline_id = ?`, timelineID)
	timeline, err := scanTimeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	return timeline, nil
}

// Status reads only the lifecycle status of a timeline. The boolean is false
// when the id is unknown.
func (s *Store) Status(ctx context.Context, timelineID string) (Status, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM timelines WHERE timeline_id = ?`, timelineID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read status: %w", err)
	}
	return Status(raw), true, nil
}

// List returns timelines, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Timeline, error) {
	query := `SELECT ` + timelineColumns + ` FROM timelines`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY updated_at DESC, timeline_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	defer rows.Close()

	var timelines []*Timeline
	for rows.Next() {
		timeline, err := scanTimeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		timelines = append(timelines, timeline)
	}
	return timelines, rows.Err()
}

// Enqueue records a timeline as pending, creating it when unknown. A rerun of
// a completed or failed timeline re-enters here; prior error details are
// cleared while the previous manifest stays until a new run completes.
func (s *Store) Enqueue(ctx context.Context, timelineID, source string) (*Timeline, error) {
	timelineID = strings.TrimSpace(timelineID)
	if timelineID == "" {
		return nil, errors.New("enqueue: timeline id required")
	}
	now := nowString()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO timelines (timeline_id, source, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(timeline_id) DO UPDATE SET
             source = excluded.source,
             status = excluded.status,
             error_kind = NULL,
             error_message = NULL,
             updated_at = excluded.updated_at`,
		timelineID,
		source,
		StatusPending,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("enqueue timeline: %w", err)
	}
	return s.Get(ctx, timelineID)
}

// MarkProcessing moves a pending timeline into processing.
func (s *Store) MarkProcessing(ctx context.Context, timelineID string) error {
	now := nowString()
	return s.transition(
		ctx,
		timelineID,
		StatusPending,
		`UPDATE timelines SET status = ?, attempts = attempts + 1, started_at = ?, updated_at = ?
         WHERE timeline_id = ? AND status = ?`,
		StatusProcessing, now, now, timelineID, StatusPending,
	)
}

// MarkFailed records a failed run with its error kind and message.
func (s *Store) MarkFailed(ctx context.Context, timelineID, kind, message string) error {
	return s.transition(
		ctx,
		timelineID,
		StatusProcessing,
		`UPDATE timelines SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE timeline_id = ? AND status = ?`,
		StatusFailed, nullableString(kind), nullableString(message), nowString(), timelineID, StatusProcessing,
	)
}

// Release returns a processing timeline to pending, recording why. Used for
// cancelled runs and crash recovery.
func (s *Store) Release(ctx context.Context, timelineID, reason string) error {
	return s.transition(
		ctx,
		timelineID,
		StatusProcessing,
		`UPDATE timelines SET status = ?, error_kind = NULL, error_message = ?, updated_at = ?
         WHERE timeline_id = ? AND status = ?`,
		StatusPending, nullableString(reason), nowString(), timelineID, StatusProcessing,
	)
}

// RetryFailed moves failed timelines back to pending. With no ids every
// failed timeline is reset.
func (s *Store) RetryFailed(ctx context.Context, timelineIDs ...string) (int64, error) {
	now := nowString()
	query := `UPDATE timelines SET status = ?, error_kind = NULL, error_message = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, now, StatusFailed}
	if len(timelineIDs) > 0 {
		query += ` AND timeline_id IN (` + makePlaceholders(len(timelineIDs)) + `)`
		for _, id := range timelineIDs {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed timelines: %w", err)
	}
	return res.RowsAffected()
}

// Completion carries the result of a successful ingestion run.
type Completion struct {
	ManifestJSON string
	SegmentCount int
	Transcriber  string
	Rows         []ContextRow
}

// CompleteTimeline atomically replaces every context row of the timeline,
// stores the manifest, and marks the timeline completed. The timeline must
// still be processing; otherwise nothing is written.
func (s *Store) CompleteTimeline(ctx context.Context, timelineID string, completion Completion) error {
	for _, row := range completion.Rows {
		if row.TimelineID != timelineID {
			return fmt.Errorf("complete timeline: row %s belongs to timeline %q", row.ContextID, row.TimelineID)
		}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := nowString()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE timelines SET status = ?, manifest_json = ?, segment_count = ?, transcriber = ?,
                 error_kind = NULL, error_message = NULL, completed_at = ?, updated_at = ?
             WHERE timeline_id = ? AND status = ?`,
			StatusCompleted,
			completion.ManifestJSON,
			completion.SegmentCount,
			nullableString(completion.Transcriber),
			now,
			now,
			timelineID,
			StatusProcessing,
		)
		if err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		} else if affected == 0 {
			return fmt.Errorf("%w: timeline %s is not processing", ErrInvalidTransition, timelineID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM multimodal_context WHERE timeline_id = ?`, timelineID); err != nil {
			return fmt.Errorf("clear previous contexts: %w", err)
		}
		return upsertContextRows(ctx, tx, completion.Rows)
	})
}

func (s *Store) transition(ctx context.Context, timelineID string, from Status, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update timeline %s: %w", timelineID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timeline %s: %w", timelineID, err)
	}
	if affected == 0 {
		current, _, statusErr := s.Status(ctx, timelineID)
		if statusErr != nil {
			return statusErr
		}
		if current == "" {
			return fmt.Errorf("%w: timeline %s not found", ErrInvalidTransition, timelineID)
		}
		return fmt.Errorf("%w: timeline %s is %s, expected %s", ErrInvalidTransition, timelineID, current, from)
	}
	return nil
}
