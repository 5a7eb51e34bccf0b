package testsupport

import (
	"context"
	"testing"

	"glass/internal/config"
	"glass/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustProcessing enqueues a timeline and moves it into processing.
func MustProcessing(t testing.TB, st *store.Store, timelineID, source string) *store.Timeline {
	t.Helper()

	ctx := context.Background()
	if _, err := st.Enqueue(ctx, timelineID, source); err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	if err := st.MarkProcessing(ctx, timelineID); err != nil {
		t.Fatalf("store.MarkProcessing: %v", err)
	}
	timeline, err := st.Get(ctx, timelineID)
	if err != nil || timeline == nil {
		t.Fatalf("store.Get: %v", err)
	}
	return timeline
}
