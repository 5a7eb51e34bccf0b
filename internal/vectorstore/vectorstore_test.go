package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gocql/gocql"

	"glass/internal/config"
	"glass/internal/contextmodel"
	"glass/internal/manifest"
)

func sampleContext(id string, contextType contextmodel.ContextType, vector []float32) contextmodel.ProcessedContext {
	return contextmodel.ProcessedContext{
		ID: id,
		ExtractedData: contextmodel.ExtractedData{
			Summary:     "summary " + id,
			ContextType: contextType,
			Confidence:  10,
			Importance:  5,
		},
		Vectorize: contextmodel.Vectorize{
			ContentFormat: contextmodel.FormatText,
			Text:          "text " + id,
			Vector:        vector,
		},
		Metadata: contextmodel.SegmentMetadata{
			TimelineID:   "tl-1",
			SegmentStart: 1.5,
			SegmentEnd:   3,
			SegmentType:  manifest.KindAudio,
			SourceVideo:  "/videos/a.mp4",
		},
	}
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	input := []contextmodel.ProcessedContext{
		sampleContext("a", contextmodel.ContextTypeActivity, []float32{0.5, -1.25, 3}),
		sampleContext("b", contextmodel.ContextTypeActivity, nil),
	}
	ids, err := s.BatchUpsert(ctx, contextmodel.ContextTypeActivity, input)
	if err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}

	got, err := s.Get(ctx, contextmodel.ContextTypeActivity, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ExtractedData.Summary != "summary a" || got.Metadata.SourceVideo != "/videos/a.mp4" {
		t.Fatalf("unexpected record %#v", got)
	}
	if len(got.Vectorize.Vector) != 3 || got.Vectorize.Vector[1] != -1.25 {
		t.Fatalf("unexpected vector %v", got.Vectorize.Vector)
	}

	noVector, err := s.Get(ctx, contextmodel.ContextTypeActivity, "b")
	if err != nil || noVector == nil || noVector.Vectorize.HasVector() {
		t.Fatalf("expected record without vector, got %#v (%v)", noVector, err)
	}
}

func TestSQLiteGetMissing(t *testing.T) {
	s := openSQLite(t)
	got, err := s.Get(context.Background(), contextmodel.ContextTypeState, "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %#v, %v", got, err)
	}
}

func TestSQLiteUpsertOverwrites(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	first := sampleContext("a", contextmodel.ContextTypeState, nil)
	if _, err := s.BatchUpsert(ctx, contextmodel.ContextTypeState, []contextmodel.ProcessedContext{first}); err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	second := first
	second.ExtractedData.Summary = "changed"
	if _, err := s.BatchUpsert(ctx, contextmodel.ContextTypeState, []contextmodel.ProcessedContext{second}); err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	got, err := s.Get(ctx, contextmodel.ContextTypeState, "a")
	if err != nil || got == nil || got.ExtractedData.Summary != "changed" {
		t.Fatalf("expected overwritten record, got %#v (%v)", got, err)
	}
}

func TestBatchValidation(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	if _, err := s.BatchUpsert(ctx, contextmodel.ContextTypeActivity, []contextmodel.ProcessedContext{
		sampleContext("", contextmodel.ContextTypeActivity, nil),
	}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if _, err := s.BatchUpsert(ctx, contextmodel.ContextTypeActivity, []contextmodel.ProcessedContext{
		sampleContext("x", contextmodel.ContextTypeState, nil),
	}); err == nil {
		t.Fatal("expected error for mixed-category batch")
	}
	if _, err := s.BatchUpsert(ctx, "", nil); err == nil {
		t.Fatal("expected error for empty context type")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	vector := []float32{1, 2}
	if _, err := m.BatchUpsert(ctx, contextmodel.ContextTypeActivity, []contextmodel.ProcessedContext{
		sampleContext("a", contextmodel.ContextTypeActivity, vector),
	}); err != nil {
		t.Fatalf("BatchUpsert: %v", err)
	}
	vector[0] = 99
	got, _ := m.Get(ctx, contextmodel.ContextTypeActivity, "a")
	if got.Vectorize.Vector[0] != 1 {
		t.Fatal("expected stored vector to be independent of caller slice")
	}
	m.Delete(contextmodel.ContextTypeActivity, "a")
	if m.Len() != 0 {
		t.Fatalf("expected empty store, got %d", m.Len())
	}
}

func TestOpenSelectsSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	s, err := Open(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if s.Name() != "sqlite" {
		t.Fatalf("expected sqlite backend, got %s", s.Name())
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Backend = "faiss"
	if _, err := Open(context.Background(), &cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestParseConsistency(t *testing.T) {
	tests := map[string]gocql.Consistency{
		"":             gocql.Quorum,
		"QUORUM":       gocql.Quorum,
		"one":          gocql.One,
		"local_quorum": gocql.LocalQuorum,
		"all":          gocql.All,
	}
	for in, want := range tests {
		got, err := parseConsistency(in)
		if err != nil || got != want {
			t.Fatalf("parseConsistency(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseConsistency("each_quorum"); err == nil {
		t.Fatal("expected error for unsupported consistency")
	}
}

func TestOpenCassandraRequiresHosts(t *testing.T) {
	if _, err := OpenCassandra(context.Background(), config.Cassandra{}); err == nil {
		t.Fatal("expected error without hosts")
	}
}
