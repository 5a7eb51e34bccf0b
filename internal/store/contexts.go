package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const upsertContextSQL = `INSERT INTO multimodal_context (
        timeline_id, context_id, modality, content_ref, embedding_ready, context_type,
        segment_start, segment_end, auto_summary_json, created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(context_id) DO UPDATE SET
        timeline_id = excluded.timeline_id,
        modality = excluded.modality,
        content_ref = excluded.content_ref,
        embedding_ready = excluded.embedding_ready,
        context_type = excluded.context_type,
        segment_start = excluded.segment_start,
        segment_end = excluded.segment_end,
        auto_summary_json = COALESCE(excluded.auto_summary_json, multimodal_context.auto_summary_json),
        updated_at = excluded.updated_at`

// UpsertContextRows writes rows in one transaction; either every row is
// stored or none is. Rows are keyed by context id, last write wins.
func (s *Store) UpsertContextRows(ctx context.Context, rows []ContextRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertContextRows(ctx, tx, rows)
	})
}

func upsertContextRows(ctx context.Context, tx *sql.Tx, rows []ContextRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertContextSQL)
	if err != nil {
		return fmt.Errorf("prepare context upsert: %w", err)
	}
	defer stmt.Close()

	now := nowString()
	for _, row := range rows {
		if strings.TrimSpace(row.ContextID) == "" {
			return errors.New("context upsert: empty context id")
		}
		if _, err := stmt.ExecContext(
			ctx,
			row.TimelineID,
			row.ContextID,
			row.Modality,
			row.ContentRef,
			boolToInt(row.EmbeddingReady),
			row.ContextType,
			row.SegmentStart,
			row.SegmentEnd,
			nullableString(row.AutoSummaryJSON),
			now,
			now,
		); err != nil {
			return fmt.Errorf("upsert context %s: %w", row.ContextID, err)
		}
	}
	return nil
}

// ListContextRows returns the context rows of a timeline, most recent
// content first: descending segment_end, then segment_start, then context id.
// Modalities, when given, restrict the result.
func (s *Store) ListContextRows(ctx context.Context, timelineID string, modalities ...string) ([]ContextRow, error) {
	query := `SELECT ` + contextColumns + ` FROM multimodal_context WHERE timeline_id = ?`
	args := []any{timelineID}
	if len(modalities) > 0 {
		query += ` AND modality IN (` + makePlaceholders(len(modalities)) + `)`
		for _, modality := range modalities {
			args = append(args, modality)
		}
	}
	query += ` ORDER BY segment_end DESC, segment_start DESC, context_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer rows.Close()

	var out []ContextRow
	for rows.Next() {
		row, err := scanContextRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetContextRow fetches one row by context id. It returns nil, nil when absent.
func (s *Store) GetContextRow(ctx context.Context, contextID string) (*ContextRow, error) {
	row, err := scanContextRow(s.db.QueryRowContext(ctx, `SELECT `+contextColumns+` FROM multimodal_context WHERE context_id = ?`, contextID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get context: %w", err)
	}
	return &row, nil
}

// SetEmbeddingReady flips the embedding flag for the given contexts.
func (s *Store) SetEmbeddingReady(ctx context.Context, ready bool, contextIDs ...string) (int64, error) {
	if len(contextIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(contextIDs)+2)
	args = append(args, boolToInt(ready), nowString())
	for _, id := range contextIDs {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE multimodal_context SET embedding_ready = ?, updated_at = ?
         WHERE context_id IN (`+makePlaceholders(len(contextIDs))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("set embedding ready: %w", err)
	}
	return res.RowsAffected()
}

// SetAutoSummary attaches derived summary JSON to a context row.
func (s *Store) SetAutoSummary(ctx context.Context, contextID, summaryJSON string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE multimodal_context SET auto_summary_json = ?, updated_at = ? WHERE context_id = ?`,
		nullableString(summaryJSON),
		nowString(),
		contextID,
	)
	if err != nil {
		return false, fmt.Errorf("set auto summary: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set auto summary: %w", err)
	}
	return affected > 0, nil
}
