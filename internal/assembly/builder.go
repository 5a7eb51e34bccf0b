// Package assembly converts alignment manifests into processed context items.
//
// Audio transcripts become chunked activity contexts, frames become image
// state contexts, and text segments become semantic contexts. Every context
// carries the timeline metadata needed to place it without the manifest.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"glass/internal/chunker"
	"glass/internal/contextmodel"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/textutil"
)

const (
	defaultConfidence = 10
	defaultImportance = 5
	maxKeywords       = 5
)

var contextNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("glass/context"))

// Embedder optionally turns content into a vector. A nil vector with a nil
// error means no vector is available.
type Embedder interface {
	Embed(ctx context.Context, content contextmodel.Vectorize) ([]float32, error)
}

// Builder assembles context items from a manifest.
type Builder struct {
	chunker  *chunker.TextChunker
	embedder Embedder
	logger   *slog.Logger
	clock    func() time.Time
}

// Option customizes a Builder.
type Option func(*Builder)

// WithEmbedder attaches an embedding capability.
func WithEmbedder(embedder Embedder) Option {
	return func(b *Builder) { b.embedder = embedder }
}

// WithLogger sets the builder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock overrides the time source used for context properties.
func WithClock(clock func() time.Time) Option {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewBuilder returns a builder that chunks transcripts to maxChunkSize characters.
func NewBuilder(maxChunkSize int, opts ...Option) *Builder {
	b := &Builder{
		chunker: chunker.New(maxChunkSize),
		logger:  logging.NewNop(),
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.NewComponentLogger(b.logger, "assembly")
	return b
}

// BuildItems converts every usable segment of m into items, in manifest order.
func (b *Builder) BuildItems(ctx context.Context, m *manifest.Manifest) ([]contextmodel.Item, error) {
	if m == nil {
		return nil, errors.New("assembly: manifest is nil")
	}
	logger := logging.WithTimeline(b.logger, m.TimelineID())
	now := b.clock()

	var items []contextmodel.Item
	for _, segment := range m.Segments() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch segment.Kind {
		case manifest.KindAudio:
			items = append(items, b.textItems(m, segment, contextmodel.ContextTypeActivity, now, logger)...)
		case manifest.KindText:
			items = append(items, b.textItems(m, segment, contextmodel.ContextTypeSemantic, now, logger)...)
		case manifest.KindFrame:
			if item, ok := b.frameItem(ctx, m, segment, now, logger); ok {
				items = append(items, item)
			}
		default:
			logger.Debug("skipping unsupported segment",
				logging.String("segment_type", string(segment.Kind)),
				logging.Float64("segment_start", segment.Start),
			)
		}
	}
	if len(items) > 0 {
		b.enrich(ctx, items, logger)
	}
	return items, nil
}

func (b *Builder) textItems(m *manifest.Manifest, segment manifest.Segment, contextType contextmodel.ContextType, now time.Time, logger *slog.Logger) []contextmodel.Item {
	text := strings.TrimSpace(segment.Payload)
	if text == "" {
		logger.Debug("ignoring empty text payload", logging.Float64("segment_start", segment.Start))
		return nil
	}
	chunks := b.chunker.Chunk(text)
	items := make([]contextmodel.Item, 0, len(chunks))
	for _, chunk := range chunks {
		pc := newContext(m, segment, chunk.Index, now)
		pc.ID = ContextID(m.TimelineID(), segment, chunk.Index)
		pc.ExtractedData.Summary = chunk.Text
		pc.ExtractedData.Keywords = textutil.Keywords(chunk.Text, maxKeywords)
		pc.ExtractedData.ContextType = contextType
		pc.Vectorize = contextmodel.Vectorize{ContentFormat: contextmodel.FormatText, Text: chunk.Text}
		items = append(items, contextmodel.Item{
			Context:    pc,
			TimelineID: m.TimelineID(),
			Modality:   segment.Kind,
			ContentRef: chunk.Text,
		})
	}
	return items
}

func (b *Builder) frameItem(ctx context.Context, m *manifest.Manifest, segment manifest.Segment, now time.Time, logger *slog.Logger) (contextmodel.Item, bool) {
	path := strings.TrimSpace(segment.Payload)
	if path == "" {
		logger.Debug("ignoring frame with empty payload", logging.Float64("segment_start", segment.Start))
		return contextmodel.Item{}, false
	}
	pc := newContext(m, segment, 0, now)
	pc.ID = ContextID(m.TimelineID(), segment, 0)
	pc.ExtractedData.Summary = FrameSummary(segment.Start)
	pc.ExtractedData.ContextType = contextmodel.ContextTypeState
	pc.Vectorize = contextmodel.Vectorize{ContentFormat: contextmodel.FormatImage, ImagePath: path}
	return contextmodel.Item{
		Context:    pc,
		TimelineID: m.TimelineID(),
		Modality:   segment.Kind,
		ContentRef: path,
	}, true
}

// enrich offers each context to the embedder. Failures leave the item
// without a vector and never fail assembly.
func (b *Builder) enrich(ctx context.Context, items []contextmodel.Item, logger *slog.Logger) {
	if b.embedder == nil {
		return
	}
	failures := 0
	for i := range items {
		if ctx.Err() != nil {
			return
		}
		vector, err := b.embedder.Embed(ctx, items[i].Context.Vectorize)
		if err != nil {
			failures++
			logger.Debug("embedding unavailable",
				logging.String("context_id", items[i].Context.ID),
				logging.Error(err),
			)
			continue
		}
		if len(vector) == 0 {
			continue
		}
		items[i].Context.Vectorize.Vector = vector
		items[i].EmbeddingReady = true
	}
	if failures > 0 {
		logging.WarnWithContext(logger, "embedding failed for some contexts", "embedding_partial",
			logging.Int("failed", failures),
			logging.Int("total", len(items)),
			logging.String(logging.FieldImpact, "contexts stored without vectors"),
			logging.String(logging.FieldErrorHint, "check embedding endpoint and credentials"),
		)
	}
}

func newContext(m *manifest.Manifest, segment manifest.Segment, chunkIndex int, now time.Time) contextmodel.ProcessedContext {
	return contextmodel.ProcessedContext{
		ExtractedData: contextmodel.ExtractedData{
			Confidence: defaultConfidence,
			Importance: defaultImportance,
		},
		Properties: contextmodel.Properties{
			CreateTime: now,
			EventTime:  now,
			UpdateTime: now,
		},
		Metadata: contextmodel.SegmentMetadata{
			TimelineID:   m.TimelineID(),
			SegmentStart: segment.Start,
			SegmentEnd:   segment.End,
			SegmentType:  segment.Kind,
			ChunkIndex:   chunkIndex,
			SourceVideo:  m.Source(),
		},
	}
}

// FrameSummary is the summary text attached to frame contexts.
func FrameSummary(start float64) string {
	return fmt.Sprintf("Frame captured at %.2fs", start)
}

// ContextID derives the stable id of one chunk of one segment. Re-assembling
// the same manifest always yields the same ids.
func ContextID(timelineID string, segment manifest.Segment, chunkIndex int) string {
	key := strings.Join([]string{
		timelineID,
		string(segment.Kind),
		strconv.FormatFloat(segment.Start, 'f', -1, 64),
		strconv.FormatFloat(segment.End, 'f', -1, 64),
		segment.Payload,
		strconv.Itoa(chunkIndex),
	}, "|")
	return uuid.NewSHA1(contextNamespace, []byte(key)).String()
}
