package store_test

import (
	"context"
	"errors"
	"testing"

	"glass/internal/store"
	"glass/internal/testsupport"
)

func contextRow(timelineID, contextID, modality, contextType string, start, end float64) store.ContextRow {
	return store.ContextRow{
		TimelineID:   timelineID,
		ContextID:    contextID,
		Modality:     modality,
		ContentRef:   "ref-" + contextID,
		ContextType:  contextType,
		SegmentStart: start,
		SegmentEnd:   end,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected readable database, got %#v", health)
	}
	if health.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", health.SchemaVersion)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if st.Path() != cfg.DatabasePath() {
		t.Fatalf("expected path %q, got %q", cfg.DatabasePath(), st.Path())
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Enqueue(ctx, "tl-1", "/videos/a.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	timeline, err := second.Get(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if timeline == nil || timeline.Source != "/videos/a.mp4" || timeline.Status != store.StatusPending {
		t.Fatalf("unexpected timeline after reopen: %#v", timeline)
	}
}

func TestGetUnknownTimelineReturnsNil(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	timeline, err := st.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if timeline != nil {
		t.Fatalf("expected nil timeline, got %#v", timeline)
	}
	_, found, err := st.Status(context.Background(), "missing")
	if err != nil || found {
		t.Fatalf("expected not found, got found=%v err=%v", found, err)
	}
}

func TestEnqueueRequiresID(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := st.Enqueue(context.Background(), "  ", "/videos/a.mp4"); err == nil {
		t.Fatal("expected error for blank timeline id")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, "tl-1", "/videos/a.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := st.MarkFailed(ctx, "tl-1", "failed", "boom"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from pending to failed, got %v", err)
	}
	if err := st.MarkProcessing(ctx, "tl-1"); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := st.MarkProcessing(ctx, "tl-1"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected second MarkProcessing to fail, got %v", err)
	}
	if err := st.MarkFailed(ctx, "tl-1", "transient", "network down"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	timeline, err := st.Get(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if timeline.Status != store.StatusFailed || timeline.ErrorKind != "transient" || timeline.ErrorMessage != "network down" {
		t.Fatalf("unexpected failed timeline: %#v", timeline)
	}
	if timeline.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", timeline.Attempts)
	}
	if timeline.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	updated, err := st.RetryFailed(ctx, "tl-1")
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 timeline retried, got %d", updated)
	}
	status, _, err := st.Status(ctx, "tl-1")
	if err != nil || status != store.StatusPending {
		t.Fatalf("expected pending after retry, got %q (%v)", status, err)
	}
}

func TestReleaseReturnsToPending(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustProcessing(t, st, "tl-1", "/videos/a.mp4")

	if err := st.Release(ctx, "tl-1", "cancelled"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	timeline, err := st.Get(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if timeline.Status != store.StatusPending || timeline.ErrorMessage != "cancelled" {
		t.Fatalf("unexpected released timeline: %#v", timeline)
	}
	if err := st.Release(ctx, "tl-1", "again"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition releasing pending timeline, got %v", err)
	}
}

func TestCompleteTimelineStoresManifestAndRows(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustProcessing(t, st, "tl-1", "/videos/a.mp4")

	rows := []store.ContextRow{
		contextRow("tl-1", "c-audio", "audio", "activity_context", 0, 2),
		contextRow("tl-1", "c-frame", "frame", "state_context", 3, 3),
		contextRow("tl-1", "c-text", "text", "semantic_context", 0, 2),
	}
	err := st.CompleteTimeline(ctx, "tl-1", store.Completion{
		ManifestJSON: `{"timeline_id":"tl-1"}`,
		SegmentCount: 2,
		Transcriber:  "whisperx",
		Rows:         rows,
	})
	if err != nil {
		t.Fatalf("CompleteTimeline failed: %v", err)
	}

	timeline, err := st.Get(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !timeline.HasManifest() || timeline.SegmentCount != 2 || timeline.Transcriber != "whisperx" {
		t.Fatalf("unexpected completed timeline: %#v", timeline)
	}
	if timeline.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	listed, err := st.ListContextRows(ctx, "tl-1")
	if err != nil {
		t.Fatalf("ListContextRows failed: %v", err)
	}
	want := []string{"c-frame", "c-audio", "c-text"}
	if len(listed) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(listed))
	}
	for i, id := range want {
		if listed[i].ContextID != id {
			t.Fatalf("row %d: expected %s, got %s", i, id, listed[i].ContextID)
		}
	}

	audioOnly, err := st.ListContextRows(ctx, "tl-1", "audio")
	if err != nil {
		t.Fatalf("ListContextRows failed: %v", err)
	}
	if len(audioOnly) != 1 || audioOnly[0].ContextID != "c-audio" {
		t.Fatalf("unexpected modality filter result: %#v", audioOnly)
	}
}

func TestCompleteTimelineRequiresProcessing(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.Enqueue(ctx, "tl-1", "/videos/a.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	err := st.CompleteTimeline(ctx, "tl-1", store.Completion{
		ManifestJSON: "{}",
		Rows:         []store.ContextRow{contextRow("tl-1", "c-1", "audio", "activity_context", 0, 1)},
	})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	rows, err := st.ListContextRows(ctx, "tl-1")
	if err != nil {
		t.Fatalf("ListContextRows failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows written, got %d", len(rows))
	}
}

func TestCompleteTimelineRollsBackOnRowFailure(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustProcessing(t, st, "tl-1", "/videos/a.mp4")
	if err := st.CompleteTimeline(ctx, "tl-1", store.Completion{
		ManifestJSON: `{"run":1}`,
		Rows:         []store.ContextRow{contextRow("tl-1", "old", "audio", "activity_context", 0, 1)},
	}); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	if _, err := st.Enqueue(ctx, "tl-1", "/videos/a.mp4"); err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}
	if err := st.MarkProcessing(ctx, "tl-1"); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	bad := contextRow("tl-1", "new-bad", "", "activity_context", 0, 1)
	err := st.CompleteTimeline(ctx, "tl-1", store.Completion{
		ManifestJSON: `{"run":2}`,
		Rows: []store.ContextRow{
			contextRow("tl-1", "new-good", "audio", "activity_context", 0, 1),
			bad,
		},
	})
	if err == nil {
		t.Fatal("expected completion with invalid row to fail")
	}

	rows, err := st.ListContextRows(ctx, "tl-1")
	if err != nil {
		t.Fatalf("ListContextRows failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ContextID != "old" {
		t.Fatalf("expected previous rows untouched, got %#v", rows)
	}
	status, _, err := st.Status(ctx, "tl-1")
	if err != nil || status != store.StatusProcessing {
		t.Fatalf("expected timeline still processing, got %q (%v)", status, err)
	}
}

func TestCompleteTimelineRejectsForeignRows(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustProcessing(t, st, "tl-1", "/videos/a.mp4")

	err := st.CompleteTimeline(context.Background(), "tl-1", store.Completion{
		Rows: []store.ContextRow{contextRow("tl-2", "c-1", "audio", "activity_context", 0, 1)},
	})
	if err == nil {
		t.Fatal("expected error for row of another timeline")
	}
}

func TestUpsertContextRowsPreservesSummary(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	row := contextRow("tl-1", "c-1", "audio", "activity_context", 0, 1)
	if err := st.UpsertContextRows(ctx, []store.ContextRow{row}); err != nil {
		t.Fatalf("UpsertContextRows failed: %v", err)
	}
	ok, err := st.SetAutoSummary(ctx, "c-1", `{"title":"intro"}`)
	if err != nil || !ok {
		t.Fatalf("SetAutoSummary failed: ok=%v err=%v", ok, err)
	}

	row.ContentRef = "updated"
	if err := st.UpsertContextRows(ctx, []store.ContextRow{row}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	fetched, err := st.GetContextRow(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetContextRow failed: %v", err)
	}
	if fetched.ContentRef != "updated" {
		t.Fatalf("expected content ref updated, got %q", fetched.ContentRef)
	}
	if fetched.AutoSummaryJSON != `{"title":"intro"}` {
		t.Fatalf("expected summary preserved, got %q", fetched.AutoSummaryJSON)
	}

	missing, err := st.GetContextRow(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing row, got %#v (%v)", missing, err)
	}
}

func TestSetEmbeddingReady(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	rows := []store.ContextRow{
		contextRow("tl-1", "c-1", "audio", "activity_context", 0, 1),
		contextRow("tl-1", "c-2", "audio", "activity_context", 1, 2),
	}
	if err := st.UpsertContextRows(ctx, rows); err != nil {
		t.Fatalf("UpsertContextRows failed: %v", err)
	}
	n, err := st.SetEmbeddingReady(ctx, true, "c-1", "missing")
	if err != nil {
		t.Fatalf("SetEmbeddingReady failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row updated, got %d", n)
	}
	fetched, err := st.GetContextRow(ctx, "c-1")
	if err != nil || !fetched.EmbeddingReady {
		t.Fatalf("expected c-1 embedding ready, got %#v (%v)", fetched, err)
	}
}

func TestListAndHealth(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, "tl-pending", "/a.mp4"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	testsupport.MustProcessing(t, st, "tl-processing", "/b.mp4")
	testsupport.MustProcessing(t, st, "tl-failed", "/c.mp4")
	if err := st.MarkFailed(ctx, "tl-failed", "malformed", "bad output"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	processing, err := st.List(ctx, store.StatusProcessing)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != "tl-processing" {
		t.Fatalf("unexpected processing list: %#v", processing)
	}
	all, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 timelines, got %d", len(all))
	}

	health, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Pending != 1 || health.Processing != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := store.ParseStatus(" Completed "); !ok || status != store.StatusCompleted {
		t.Fatalf("expected completed, got %q ok=%v", status, ok)
	}
	if _, ok := store.ParseStatus("encoding"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
