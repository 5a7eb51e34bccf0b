package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"glass/internal/assembly"
	"glass/internal/contextmodel"
	"glass/internal/manifest"
	"glass/internal/repository"
	"glass/internal/services"
	"glass/internal/store"
	"glass/internal/testsupport"
	"glass/internal/vectorstore"
)

// renamingStore assigns its own ids per category, the way a backend with
// server-generated keys would.
type renamingStore struct {
	mu      sync.Mutex
	records map[string]contextmodel.ProcessedContext
	calls   []contextmodel.ContextType
}

func newRenamingStore() *renamingStore {
	return &renamingStore{records: make(map[string]contextmodel.ProcessedContext)}
}

func (s *renamingStore) Name() string { return "renaming" }

func (s *renamingStore) BatchUpsert(_ context.Context, contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, contextType)
	ids := make([]string, 0, len(contexts))
	for _, c := range contexts {
		id := fmt.Sprintf("%s/%s", contextType, c.ID)
		c.ID = id
		s.records[id] = c
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *renamingStore) Get(_ context.Context, _ contextmodel.ContextType, id string) (*contextmodel.ProcessedContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *renamingStore) Close() error { return nil }

// shortStore drops the last id of every batch.
type shortStore struct{ *vectorstore.Memory }

func (s shortStore) BatchUpsert(ctx context.Context, contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) ([]string, error) {
	ids, err := s.Memory.BatchUpsert(ctx, contextType, contexts)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	return ids[:len(ids)-1], nil
}

type failingStore struct{ *vectorstore.Memory }

func (failingStore) BatchUpsert(context.Context, contextmodel.ContextType, []contextmodel.ProcessedContext) ([]string, error) {
	return nil, errors.New("connection refused")
}

type emptyAssembler struct{}

func (emptyAssembler) BuildItems(context.Context, *manifest.Manifest) ([]contextmodel.Item, error) {
	return nil, nil
}

func item(timelineID string, modality manifest.Kind, contextType contextmodel.ContextType, id, ref string, start, end float64) contextmodel.Item {
	return contextmodel.Item{
		Context: contextmodel.ProcessedContext{
			ID:            id,
			ExtractedData: contextmodel.ExtractedData{Summary: ref, ContextType: contextType},
			Metadata: contextmodel.SegmentMetadata{
				TimelineID:   timelineID,
				SegmentStart: start,
				SegmentEnd:   end,
				SegmentType:  modality,
				SourceVideo:  "/videos/" + timelineID + ".mp4",
			},
		},
		TimelineID: timelineID,
		Modality:   modality,
		ContentRef: ref,
	}
}

func newRepo(t *testing.T, vectors vectorstore.Store, opts ...repository.Option) (*repository.Repository, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	repo, err := repository.New(st, vectors, opts...)
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	return repo, st
}

func TestUpsertAlignsIDsAcrossMixedModalities(t *testing.T) {
	vectors := newRenamingStore()
	repo, _ := newRepo(t, vectors)
	ctx := context.Background()

	items := []contextmodel.Item{
		item("tl-1", manifest.KindFrame, contextmodel.ContextTypeState, "f0", "/frames/0.png", 0, 0),
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "hello", 0, 2.4),
		item("tl-1", manifest.KindFrame, contextmodel.ContextTypeState, "f1", "/frames/1.png", 1, 1),
		item("tl-1", manifest.KindText, contextmodel.ContextTypeSemantic, "t0", "chapter", 1.5, 1.5),
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a1", "world", 2.4, 5),
		item("tl-1", manifest.KindFrame, contextmodel.ContextTypeState, "f2", "/frames/2.png", 2, 2),
	}
	ids, err := repo.Upsert(ctx, items)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(ids) != len(items) {
		t.Fatalf("expected %d ids, got %d", len(items), len(ids))
	}
	for i, it := range items {
		want := fmt.Sprintf("%s/%s", it.Context.Type(), it.Context.ID)
		if ids[i] != want {
			t.Fatalf("id %d: expected %q, got %q", i, want, ids[i])
		}
	}
	if len(vectors.calls) != 3 {
		t.Fatalf("expected one batch per category, got %v", vectors.calls)
	}

	envelope, err := repo.LoadEnvelope(ctx, "tl-1")
	if err != nil {
		t.Fatalf("LoadEnvelope: %v", err)
	}
	if envelope == nil || len(envelope.Items) != len(items) {
		t.Fatalf("unexpected envelope %#v", envelope)
	}
	byID := make(map[string]contextmodel.Item)
	for _, loaded := range envelope.Items {
		byID[loaded.Context.ID] = loaded
	}
	for i, id := range ids {
		loaded, ok := byID[id]
		if !ok {
			t.Fatalf("id %s missing from envelope", id)
		}
		if loaded.ContentRef != items[i].ContentRef {
			t.Fatalf("id %s: content ref %q does not match input %q", id, loaded.ContentRef, items[i].ContentRef)
		}
		if loaded.Context.ExtractedData.Summary != items[i].ContentRef {
			t.Fatalf("id %s: vector record belongs to another item", id)
		}
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	repo, st := newRepo(t, vectorstore.NewMemory())
	ctx := context.Background()
	items := []contextmodel.Item{item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "hello", 0, 1)}

	for range 2 {
		if _, err := repo.Upsert(ctx, items); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	rows, err := st.ListContextRows(ctx, "tl-1")
	if err != nil {
		t.Fatalf("ListContextRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single row after re-upsert, got %d", len(rows))
	}
}

func TestUpsertDetectsIDCountMismatch(t *testing.T) {
	repo, st := newRepo(t, shortStore{vectorstore.NewMemory()})
	ctx := context.Background()

	items := []contextmodel.Item{
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "hello", 0, 1),
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a1", "world", 1, 2),
	}
	_, err := repo.Upsert(ctx, items)
	if !errors.Is(err, services.ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
	rows, err := st.ListContextRows(ctx, "tl-1")
	if err != nil {
		t.Fatalf("ListContextRows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no relational rows, got %d", len(rows))
	}
}

func TestUpsertVectorFailureIsTransient(t *testing.T) {
	repo, st := newRepo(t, failingStore{vectorstore.NewMemory()})
	ctx := context.Background()
	_, err := repo.Upsert(ctx, []contextmodel.Item{item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "x", 0, 1)})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	rows, _ := st.ListContextRows(ctx, "tl-1")
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestUpsertRejectsUntypedItems(t *testing.T) {
	repo, _ := newRepo(t, vectorstore.NewMemory())
	_, err := repo.Upsert(context.Background(), []contextmodel.Item{item("tl-1", manifest.KindAudio, "", "a0", "x", 0, 1)})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpsertRelationalFailureReportsError(t *testing.T) {
	vectors := vectorstore.NewMemory()
	repo, st := newRepo(t, vectors)
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	_, err := repo.Upsert(context.Background(), []contextmodel.Item{item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "x", 0, 1)})
	if err == nil {
		t.Fatal("expected relational failure")
	}
	if vectors.Len() != 1 {
		t.Fatalf("expected vector phase kept for self-healing retry, got %d records", vectors.Len())
	}
}

func TestLoadEnvelopeOrdersBySegmentEndDescending(t *testing.T) {
	repo, _ := newRepo(t, vectorstore.NewMemory())
	ctx := context.Background()

	items := []contextmodel.Item{
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "e5", "five", 0, 5),
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "e20", "twenty", 15, 20),
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "e10", "ten", 6, 10),
	}
	if _, err := repo.Upsert(ctx, items); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	envelope, err := repo.LoadEnvelope(ctx, "tl-1")
	if err != nil {
		t.Fatalf("LoadEnvelope: %v", err)
	}
	want := []float64{20, 10, 5}
	for i, end := range want {
		if got := envelope.Items[i].Context.Metadata.SegmentEnd; got != end {
			t.Fatalf("position %d: expected segment_end %v, got %v", i, end, got)
		}
	}
	if envelope.Source != "/videos/tl-1.mp4" {
		t.Fatalf("expected source from metadata, got %q", envelope.Source)
	}
}

func TestLoadEnvelopeFiltersAndSkipsMissing(t *testing.T) {
	vectors := vectorstore.NewMemory()
	repo, _ := newRepo(t, vectors)
	ctx := context.Background()

	items := []contextmodel.Item{
		item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "hello", 0, 2),
		item("tl-1", manifest.KindFrame, contextmodel.ContextTypeState, "f0", "/f0.png", 1, 1),
		item("tl-1", manifest.KindFrame, contextmodel.ContextTypeState, "f1", "/f1.png", 3, 3),
	}
	if _, err := repo.Upsert(ctx, items); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	vectors.Delete(contextmodel.ContextTypeState, "f1")

	frames, err := repo.LoadEnvelope(ctx, "tl-1", manifest.KindFrame)
	if err != nil {
		t.Fatalf("LoadEnvelope: %v", err)
	}
	if len(frames.Items) != 1 || frames.Items[0].ContentRef != "/f0.png" {
		t.Fatalf("expected only the surviving frame, got %#v", frames.Items)
	}

	missing, err := repo.LoadEnvelope(ctx, "unknown")
	if err != nil || missing != nil {
		t.Fatalf("expected nil envelope for unknown timeline, got %#v (%v)", missing, err)
	}
}

func buildManifest(t *testing.T, timelineID string) *manifest.Manifest {
	t.Helper()
	segs := []manifest.Segment{}
	for _, s := range []struct {
		start, end float64
		kind       manifest.Kind
		payload    string
	}{
		{0, 2.4, manifest.KindAudio, "hello"},
		{2.4, 5.0, manifest.KindAudio, "world"},
		{0, 0, manifest.KindFrame, "/frames/1.png"},
		{1, 1, manifest.KindFrame, "/frames/2.png"},
		{2, 2, manifest.KindFrame, "/frames/3.png"},
	} {
		seg, err := manifest.NewSegment(s.start, s.end, s.kind, s.payload)
		if err != nil {
			t.Fatalf("NewSegment: %v", err)
		}
		segs = append(segs, seg)
	}
	m, err := manifest.New(timelineID, "/videos/walk.mp4", segs)
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}
	return m
}

func TestPersistTimelineCompletesAndReplaces(t *testing.T) {
	builder := assembly.NewBuilder(1000)
	repo, st := newRepo(t, vectorstore.NewMemory())
	ctx := context.Background()

	m := buildManifest(t, "tl-1")
	items, err := builder.BuildItems(ctx, m)
	if err != nil {
		t.Fatalf("BuildItems: %v", err)
	}
	testsupport.MustProcessing(t, st, "tl-1", "/videos/walk.mp4")
	if _, err := repo.PersistTimeline(ctx, m, items, "whisperx"); err != nil {
		t.Fatalf("PersistTimeline: %v", err)
	}
	timeline, err := st.Get(ctx, "tl-1")
	if err != nil || timeline.Status != store.StatusCompleted || timeline.SegmentCount != 5 {
		t.Fatalf("unexpected timeline %#v (%v)", timeline, err)
	}
	stored, err := manifest.Parse([]byte(timeline.ManifestJSON))
	if err != nil || stored.Len() != 5 {
		t.Fatalf("stored manifest not usable: %v", err)
	}

	// A rerun with fewer segments replaces the previous rows.
	seg, _ := manifest.NewSegment(0, 1, manifest.KindAudio, "only")
	second, _ := manifest.New("tl-1", "/videos/walk.mp4", []manifest.Segment{seg})
	secondItems, _ := builder.BuildItems(ctx, second)
	if _, err := st.Enqueue(ctx, "tl-1", "/videos/walk.mp4"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := st.MarkProcessing(ctx, "tl-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if _, err := repo.PersistTimeline(ctx, second, secondItems, "auc"); err != nil {
		t.Fatalf("PersistTimeline rerun: %v", err)
	}
	rows, err := st.ListContextRows(ctx, "tl-1")
	if err != nil {
		t.Fatalf("ListContextRows: %v", err)
	}
	if len(rows) != 1 || rows[0].ContentRef != "only" {
		t.Fatalf("expected rows replaced by rerun, got %#v", rows)
	}
}

func TestPersistTimelineRequiresProcessing(t *testing.T) {
	repo, st := newRepo(t, vectorstore.NewMemory())
	ctx := context.Background()
	m := buildManifest(t, "tl-1")
	items, _ := assembly.NewBuilder(1000).BuildItems(ctx, m)
	if _, err := st.Enqueue(ctx, "tl-1", "/videos/walk.mp4"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := repo.PersistTimeline(ctx, m, items, "whisperx"); !errors.Is(err, services.ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent for non-processing timeline, got %v", err)
	}
}

func TestPersistTimelineRejectsForeignItems(t *testing.T) {
	repo, _ := newRepo(t, vectorstore.NewMemory())
	m := buildManifest(t, "tl-1")
	items := []contextmodel.Item{item("tl-2", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "x", 0, 1)}
	if _, err := repo.PersistTimeline(context.Background(), m, items, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestReconcileRestoresMissingVectors(t *testing.T) {
	builder := assembly.NewBuilder(1000)
	vectors := vectorstore.NewMemory()
	repo, st := newRepo(t, vectors, repository.WithAssembler(builder))
	ctx := context.Background()

	m := buildManifest(t, "tl-1")
	items, _ := builder.BuildItems(ctx, m)
	testsupport.MustProcessing(t, st, "tl-1", "/videos/walk.mp4")
	ids, err := repo.PersistTimeline(ctx, m, items, "whisperx")
	if err != nil {
		t.Fatalf("PersistTimeline: %v", err)
	}
	vectors.Delete(items[0].Context.Type(), ids[0])
	vectors.Delete(items[3].Context.Type(), ids[3])

	report, err := repo.Reconcile(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Checked != len(items) || report.Missing != 2 || report.Restored != 2 || report.Unresolved != 0 {
		t.Fatalf("unexpected report %#v", report)
	}
	envelope, err := repo.LoadEnvelope(ctx, "tl-1")
	if err != nil || len(envelope.Items) != len(items) {
		t.Fatalf("expected all items readable after reconcile, got %v", err)
	}
}

func TestReconcileFlagsUnresolvedRows(t *testing.T) {
	vectors := vectorstore.NewMemory()
	repo, st := newRepo(t, vectors, repository.WithAssembler(emptyAssembler{}))
	ctx := context.Background()

	m := buildManifest(t, "tl-1")
	items, _ := assembly.NewBuilder(1000).BuildItems(ctx, m)
	for i := range items {
		items[i].EmbeddingReady = true
	}
	testsupport.MustProcessing(t, st, "tl-1", "/videos/walk.mp4")
	ids, err := repo.PersistTimeline(ctx, m, items, "")
	if err != nil {
		t.Fatalf("PersistTimeline: %v", err)
	}
	vectors.Delete(items[1].Context.Type(), ids[1])

	report, err := repo.Reconcile(ctx, "tl-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Unresolved != 1 {
		t.Fatalf("expected one unresolved row, got %#v", report)
	}
	row, err := st.GetContextRow(ctx, ids[1])
	if err != nil || row == nil || row.EmbeddingReady {
		t.Fatalf("expected unresolved row flagged not ready, got %#v (%v)", row, err)
	}
}

func TestReconcileErrors(t *testing.T) {
	repo, st := newRepo(t, vectorstore.NewMemory())
	ctx := context.Background()
	if _, err := repo.Reconcile(ctx, "tl-1"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without assembler, got %v", err)
	}

	repo, err := repository.New(st, vectorstore.NewMemory(), repository.WithAssembler(emptyAssembler{}))
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	if _, err := repo.Reconcile(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	testsupport.MustProcessing(t, st, "tl-2", "/v.mp4")
	if _, err := repo.Reconcile(ctx, "tl-2"); !errors.Is(err, services.ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
}

func TestAttachSummaryAndEmbeddingFlag(t *testing.T) {
	repo, st := newRepo(t, vectorstore.NewMemory())
	ctx := context.Background()
	ids, err := repo.Upsert(ctx, []contextmodel.Item{item("tl-1", manifest.KindAudio, contextmodel.ContextTypeActivity, "a0", "x", 0, 1)})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.AttachSummary(ctx, ids[0], map[string]string{"title": "greeting"}); err != nil {
		t.Fatalf("AttachSummary: %v", err)
	}
	if err := repo.AttachSummary(ctx, "missing", map[string]string{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n, err := repo.MarkEmbeddingReady(ctx, true, ids...); err != nil || n != 1 {
		t.Fatalf("MarkEmbeddingReady: n=%d err=%v", n, err)
	}
	row, err := st.GetContextRow(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetContextRow: %v", err)
	}
	if row.AutoSummaryJSON != `{"title":"greeting"}` || !row.EmbeddingReady {
		t.Fatalf("unexpected row %#v", row)
	}
}
