package contextmodel

import "glass/internal/manifest"

// Item wraps a processed context with its timeline linkage. ContentRef is the
// chunk text for text contexts and the image path for frames. The repository
// is the only writer of stored items.
type Item struct {
	Context        ProcessedContext `json:"context"`
	TimelineID     string           `json:"timeline_id"`
	Modality       manifest.Kind    `json:"modality"`
	ContentRef     string           `json:"content_ref"`
	EmbeddingReady bool             `json:"embedding_ready"`
}

// Envelope bundles the items of one timeline, most recent content first.
// Envelopes are built on demand and never persisted.
type Envelope struct {
	TimelineID string `json:"timeline_id"`
	Source     string `json:"source"`
	Items      []Item `json:"items"`
}

// Contexts returns the processed contexts of the envelope in item order.
func (e *Envelope) Contexts() []ProcessedContext {
	if e == nil {
		return nil
	}
	out := make([]ProcessedContext, 0, len(e.Items))
	for _, item := range e.Items {
		out = append(out, item.Context)
	}
	return out
}

// GroupByContextType buckets contexts by semantic category, keeping order
// inside each bucket. Contexts without a category are skipped.
func GroupByContextType(contexts []ProcessedContext) map[ContextType][]ProcessedContext {
	grouped := make(map[ContextType][]ProcessedContext)
	for _, ctx := range contexts {
		contextType := ctx.Type()
		if contextType == "" {
			continue
		}
		grouped[contextType] = append(grouped[contextType], ctx)
	}
	return grouped
}
