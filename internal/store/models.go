package store

import (
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle of a timeline ingestion.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns the lifecycle statuses in order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ErrInvalidTransition reports a status change the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// Timeline is the durable ingestion record for one timeline id.
type Timeline struct {
	ID           string
	Source       string
	Status       Status
	Transcriber  string
	ErrorKind    string
	ErrorMessage string
	ManifestJSON string
	SegmentCount int
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// IsProcessing reports whether an ingestion run currently owns the timeline.
func (t *Timeline) IsProcessing() bool {
	return t != nil && t.Status == StatusProcessing
}

// HasManifest reports whether a completed manifest is stored.
func (t *Timeline) HasManifest() bool {
	return t != nil && t.Status == StatusCompleted && strings.TrimSpace(t.ManifestJSON) != ""
}

// ContextRow is the relational metadata record for one context.
type ContextRow struct {
	TimelineID      string
	ContextID       string
	Modality        string
	ContentRef      string
	EmbeddingReady  bool
	ContextType     string
	SegmentStart    float64
	SegmentEnd      float64
	AutoSummaryJSON string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HealthSummary aggregates timeline counts by lifecycle status.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Contexts   int
}

// DatabaseHealth describes the state of the database file for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	TotalTimelines   int
	Error            string
}
