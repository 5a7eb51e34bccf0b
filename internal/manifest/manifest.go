package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Kind identifies the modality of a segment.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindFrame    Kind = "frame"
	KindMetadata Kind = "metadata"
	KindText     Kind = "text"
)

var allKinds = []Kind{KindAudio, KindFrame, KindMetadata, KindText}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(allKinds, normalized) {
		return normalized, true
	}
	return "", false
}

var (
	// ErrInvalidSegment reports a segment whose bounds or kind are unusable.
	ErrInvalidSegment = errors.New("invalid segment")
	// ErrEmptyManifest reports a manifest constructed without segments.
	ErrEmptyManifest = errors.New("manifest requires at least one segment")
)

// Segment is one time-bounded unit of content on a timeline.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Kind    Kind    `json:"type"`
	Payload string  `json:"payload"`
}

// NewSegment validates and returns a segment. End may equal Start for
// instantaneous markers.
func NewSegment(start, end float64, kind Kind, payload string) (Segment, error) {
	seg := Segment{Start: start, End: end, Kind: kind, Payload: payload}
	if err := seg.Validate(); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

// Validate checks the segment invariants.
func (s Segment) Validate() error {
	if math.IsNaN(s.Start) || math.IsNaN(s.End) || math.IsInf(s.Start, 0) || math.IsInf(s.End, 0) {
		return fmt.Errorf("%w: non-finite timestamp", ErrInvalidSegment)
	}
	if s.Start < 0 || s.End < 0 {
		return fmt.Errorf("%w: negative timestamp (start=%.3f end=%.3f)", ErrInvalidSegment, s.Start, s.End)
	}
	if s.End < s.Start {
		return fmt.Errorf("%w: end %.3f before start %.3f", ErrInvalidSegment, s.End, s.Start)
	}
	if _, ok := ParseKind(string(s.Kind)); !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSegment, s.Kind)
	}
	return nil
}

// Duration returns End-Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Manifest is the complete, ordered description of one timeline's aligned
// segments. It is immutable once constructed.
type Manifest struct {
	timelineID string
	source     string
	segments   []Segment
}

// New builds a manifest, validating every segment and ordering them by
// ascending start. Segments sharing a start keep their input order.
func New(timelineID, source string, segments []Segment) (*Manifest, error) {
	timelineID = strings.TrimSpace(timelineID)
	if timelineID == "" {
		return nil, errors.New("manifest: timeline id required")
	}
	if len(segments) == 0 {
		return nil, ErrEmptyManifest
	}
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	for i, seg := range ordered {
		if err := seg.Validate(); err != nil {
			return nil, fmt.Errorf("manifest: segment %d: %w", i, err)
		}
	}
	slices.SortStableFunc(ordered, func(a, b Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
	return &Manifest{timelineID: timelineID, source: source, segments: ordered}, nil
}

// TimelineID returns the stable timeline identifier.
func (m *Manifest) TimelineID() string { return m.timelineID }

// Source returns the origin reference of the ingested video.
func (m *Manifest) Source() string { return m.source }

// Len returns the number of segments.
func (m *Manifest) Len() int { return len(m.segments) }

// Segments returns a copy of the ordered segments.
func (m *Manifest) Segments() []Segment {
	return slices.Clone(m.segments)
}

// Filter returns the segments of the given kinds in manifest order. No kinds
// returns every segment.
func (m *Manifest) Filter(kinds ...Kind) []Segment {
	if len(kinds) == 0 {
		return m.Segments()
	}
	out := make([]Segment, 0, len(m.segments))
	for _, seg := range m.segments {
		if slices.Contains(kinds, seg.Kind) {
			out = append(out, seg)
		}
	}
	return out
}

// Count returns how many segments have the given kind.
func (m *Manifest) Count(kind Kind) int {
	n := 0
	for _, seg := range m.segments {
		if seg.Kind == kind {
			n++
		}
	}
	return n
}

// Span returns the earliest start and the latest end across all segments.
func (m *Manifest) Span() (float64, float64) {
	start := m.segments[0].Start
	end := m.segments[0].End
	for _, seg := range m.segments[1:] {
		end = math.Max(end, seg.End)
	}
	return start, end
}

type manifestJSON struct {
	TimelineID string    `json:"timeline_id"`
	Source     string    `json:"source"`
	Segments   []Segment `json:"segments"`
}

// MarshalJSON emits the stable persisted representation.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(manifestJSON{
		TimelineID: m.timelineID,
		Source:     m.source,
		Segments:   m.segments,
	})
}

// MarshalIndent is MarshalJSON with indentation for files meant to be read.
func (m *Manifest) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(manifestJSON{
		TimelineID: m.timelineID,
		Source:     m.source,
		Segments:   m.segments,
	}, "", "  ")
}

// Parse decodes the persisted representation and re-validates it.
func Parse(data []byte) (*Manifest, error) {
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	return New(raw.TimelineID, raw.Source, raw.Segments)
}
