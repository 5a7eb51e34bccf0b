package manifest_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"glass/internal/manifest"
)

func TestNewSortsByStart(t *testing.T) {
	segs := []manifest.Segment{
		{Start: 2.4, End: 5.0, Kind: manifest.KindAudio, Payload: "world"},
		{Start: 0, End: 1, Kind: manifest.KindFrame, Payload: "frame_00001.png"},
		{Start: 0, End: 2.4, Kind: manifest.KindAudio, Payload: "hello"},
		{Start: 1, End: 2, Kind: manifest.KindFrame, Payload: "frame_00002.png"},
	}
	m, err := manifest.New("tl-1", "video.mp4", segs)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := m.Segments()
	wantPayloads := []string{"frame_00001.png", "hello", "frame_00002.png", "world"}
	for i, want := range wantPayloads {
		if got[i].Payload != want {
			t.Fatalf("segment %d: got %q, want %q", i, got[i].Payload, want)
		}
	}
	// caller's slice must not be reordered
	if segs[0].Payload != "world" {
		t.Fatal("New mutated the input slice")
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		segs []manifest.Segment
		want error
	}{
		{"empty", nil, manifest.ErrEmptyManifest},
		{"end before start", []manifest.Segment{{Start: 3, End: 2, Kind: manifest.KindAudio, Payload: "x"}}, manifest.ErrInvalidSegment},
		{"negative", []manifest.Segment{{Start: -1, End: 2, Kind: manifest.KindAudio, Payload: "x"}}, manifest.ErrInvalidSegment},
		{"unknown kind", []manifest.Segment{{Start: 0, End: 2, Kind: "smell", Payload: "x"}}, manifest.ErrInvalidSegment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manifest.New("tl", "src", tc.segs)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestZeroLengthMarkerAllowed(t *testing.T) {
	if _, err := manifest.NewSegment(4, 4, manifest.KindMetadata, "chapter"); err != nil {
		t.Fatalf("zero-length marker rejected: %v", err)
	}
}

func TestFilterDoesNotMutate(t *testing.T) {
	m, err := manifest.New("tl", "src", []manifest.Segment{
		{Start: 0, End: 1, Kind: manifest.KindFrame, Payload: "a"},
		{Start: 0.5, End: 2, Kind: manifest.KindAudio, Payload: "b"},
		{Start: 1, End: 2, Kind: manifest.KindFrame, Payload: "c"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	frames := m.Filter(manifest.KindFrame)
	if len(frames) != 2 || frames[0].Payload != "a" || frames[1].Payload != "c" {
		t.Fatalf("unexpected frames %+v", frames)
	}
	frames[0].Payload = "changed"
	if m.Segments()[0].Payload != "a" {
		t.Fatal("Filter result aliases manifest storage")
	}
	if m.Len() != 3 || m.Count(manifest.KindAudio) != 1 {
		t.Fatalf("unexpected counts len=%d audio=%d", m.Len(), m.Count(manifest.KindAudio))
	}
}

func TestJSONRoundTripKeepsStableFieldNames(t *testing.T) {
	m, err := manifest.New("tl-9", "/videos/day.mp4", []manifest.Segment{
		{Start: 1, End: 2, Kind: manifest.KindAudio, Payload: "later"},
		{Start: 0, End: 1, Kind: manifest.KindFrame, Payload: "frame.png"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"timeline_id":"tl-9"`, `"source"`, `"segments"`, `"start"`, `"end"`, `"type":"frame"`, `"payload"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("expected %s in %s", field, data)
		}
	}
	if strings.Index(string(data), "frame.png") > strings.Index(string(data), "later") {
		t.Fatalf("segments not in ascending start order: %s", data)
	}

	parsed, err := manifest.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.TimelineID() != "tl-9" || parsed.Len() != 2 {
		t.Fatalf("unexpected parsed manifest %s/%d", parsed.TimelineID(), parsed.Len())
	}
}

func TestParseRejectsUnsortedInvalidPayload(t *testing.T) {
	_, err := manifest.Parse([]byte(`{"timeline_id":"x","source":"s","segments":[]}`))
	if !errors.Is(err, manifest.ErrEmptyManifest) {
		t.Fatalf("expected empty manifest error, got %v", err)
	}
}
