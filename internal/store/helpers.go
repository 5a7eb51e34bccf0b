package store

import (
	"database/sql"
	"errors"
	"time"
)

const timelineColumns = "timeline_id, source, status, transcriber, error_kind, error_message, manifest_json, segment_count, attempts, created_at, updated_at, started_at, completed_at"

const contextColumns = "timeline_id, context_id, modality, content_ref, embedding_ready, context_type, segment_start, segment_end, auto_summary_json, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanTimeline(scanner rowScanner) (*Timeline, error) {
	var (
		id           string
		source       string
		statusStr    string
		transcriber  sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		manifestJSON sql.NullString
		segmentCount sql.NullInt64
		attempts     sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&source,
		&statusStr,
		&transcriber,
		&errorKind,
		&errorMessage,
		&manifestJSON,
		&segmentCount,
		&attempts,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	timeline := &Timeline{
		ID:           id,
		Source:       source,
		Status:       Status(statusStr),
		Transcriber:  transcriber.String,
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
		ManifestJSON: manifestJSON.String,
		SegmentCount: int(segmentCount.Int64),
		Attempts:     int(attempts.Int64),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		timeline.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		timeline.UpdatedAt = updated
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		timeline.StartedAt = &started
	}
	if completed, err := parseTimeString(completedRaw.String); err == nil {
		timeline.CompletedAt = &completed
	}
	return timeline, nil
}

func scanContextRow(scanner rowScanner) (ContextRow, error) {
	var (
		row         ContextRow
		ready       int64
		autoSummary sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&row.TimelineID,
		&row.ContextID,
		&row.Modality,
		&row.ContentRef,
		&ready,
		&row.ContextType,
		&row.SegmentStart,
		&row.SegmentEnd,
		&autoSummary,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return ContextRow{}, err
	}
	row.EmbeddingReady = ready != 0
	row.AutoSummaryJSON = autoSummary.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		row.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		row.UpdatedAt = updated
	}
	return row, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
