package contextmodel

import (
	"fmt"
	"strings"
	"time"

	"glass/internal/manifest"
)

// ContextType is the semantic category a context is stored under.
type ContextType string

const (
	ContextTypeActivity ContextType = "activity_context"
	ContextTypeState    ContextType = "state_context"
	ContextTypeSemantic ContextType = "semantic_context"
)

// ParseContextType accepts a stored category label.
func ParseContextType(value string) (ContextType, bool) {
	switch ContextType(strings.TrimSpace(value)) {
	case ContextTypeActivity:
		return ContextTypeActivity, true
	case ContextTypeState:
		return ContextTypeState, true
	case ContextTypeSemantic:
		return ContextTypeSemantic, true
	default:
		return "", false
	}
}

// ContentFormat describes what a Vectorize payload carries.
type ContentFormat string

const (
	FormatText  ContentFormat = "text"
	FormatImage ContentFormat = "image"
)

// Vectorize holds the content offered to the embedding capability and the
// resulting vector, if any.
type Vectorize struct {
	ContentFormat ContentFormat `json:"content_format"`
	Text          string        `json:"text,omitempty"`
	ImagePath     string        `json:"image_path,omitempty"`
	Vector        []float32     `json:"vector,omitempty"`
}

// HasVector reports whether an embedding was attached.
func (v Vectorize) HasVector() bool {
	return len(v.Vector) > 0
}

// ExtractedData is the descriptive part of a processed context.
type ExtractedData struct {
	Title       string      `json:"title,omitempty"`
	Summary     string      `json:"summary"`
	Keywords    []string    `json:"keywords,omitempty"`
	ContextType ContextType `json:"context_type"`
	Confidence  int         `json:"confidence"`
	Importance  int         `json:"importance"`
}

// Properties records when a context was created and what moment it describes.
type Properties struct {
	CreateTime time.Time `json:"create_time"`
	EventTime  time.Time `json:"event_time"`
	UpdateTime time.Time `json:"update_time"`
}

// SegmentMetadata ties a context back to its manifest segment.
type SegmentMetadata struct {
	TimelineID   string        `json:"timeline_id"`
	SegmentStart float64       `json:"segment_start"`
	SegmentEnd   float64       `json:"segment_end"`
	SegmentType  manifest.Kind `json:"segment_type"`
	ChunkIndex   int           `json:"chunk_index"`
	SourceVideo  string        `json:"source_video"`
}

// ProcessedContext is the generic semantic record stored in the vector store.
type ProcessedContext struct {
	ID            string          `json:"id"`
	ExtractedData ExtractedData   `json:"extracted_data"`
	Properties    Properties      `json:"properties"`
	Vectorize     Vectorize       `json:"vectorize"`
	Metadata      SegmentMetadata `json:"metadata"`
}

// Type returns the context's semantic category.
func (c ProcessedContext) Type() ContextType {
	return c.ExtractedData.ContextType
}

// LLMContextString renders the context as a compact block for prompt input.
func (c ProcessedContext) LLMContextString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", c.ID)
	if c.ExtractedData.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", c.ExtractedData.Title)
	}
	fmt.Fprintf(&b, "summary: %s\n", c.ExtractedData.Summary)
	if len(c.ExtractedData.Keywords) > 0 {
		fmt.Fprintf(&b, "keywords: %s\n", strings.Join(c.ExtractedData.Keywords, ", "))
	}
	fmt.Fprintf(&b, "context_type: %s\n", c.ExtractedData.ContextType)
	fmt.Fprintf(&b, "timeline: %s [%.2fs - %.2fs] %s\n",
		c.Metadata.TimelineID, c.Metadata.SegmentStart, c.Metadata.SegmentEnd, c.Metadata.SegmentType)
	if !c.Properties.EventTime.IsZero() {
		fmt.Fprintf(&b, "event_time: %s\n", c.Properties.EventTime.UTC().Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}
