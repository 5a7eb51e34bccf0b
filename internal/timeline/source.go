// Package timeline presents stored timeline contexts to consumers such as
// report generators and the debug API. It is read-only and keeps no state.
package timeline

import (
	"context"
	"log/slog"

	"glass/internal/contextmodel"
	"glass/internal/logging"
	"glass/internal/manifest"
)

// EnvelopeLoader is the read side of the context repository.
type EnvelopeLoader interface {
	LoadEnvelope(ctx context.Context, timelineID string, modalities ...manifest.Kind) (*contextmodel.Envelope, error)
}

// Source reads timeline contexts, most recent content first.
type Source struct {
	loader EnvelopeLoader
	logger *slog.Logger
}

// NewSource wraps a loader.
func NewSource(loader EnvelopeLoader, logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Source{loader: loader, logger: logging.NewComponentLogger(logger, "timeline")}
}

// FetchEnvelope returns nil when the timeline has no items matching the filter.
func (s *Source) FetchEnvelope(ctx context.Context, timelineID string, modalities ...manifest.Kind) (*contextmodel.Envelope, error) {
	envelope, err := s.loader.LoadEnvelope(ctx, timelineID, modalities...)
	if err != nil {
		return nil, err
	}
	if envelope == nil || len(envelope.Items) == 0 {
		return nil, nil
	}
	return envelope, nil
}

// Items returns the timeline items in descending timeline order.
func (s *Source) Items(ctx context.Context, timelineID string, modalities ...manifest.Kind) ([]contextmodel.Item, error) {
	envelope, err := s.FetchEnvelope(ctx, timelineID, modalities...)
	if err != nil || envelope == nil {
		return nil, err
	}
	return envelope.Items, nil
}

// ProcessedContexts returns the contexts of Items in the same order.
func (s *Source) ProcessedContexts(ctx context.Context, timelineID string, modalities ...manifest.Kind) ([]contextmodel.ProcessedContext, error) {
	envelope, err := s.FetchEnvelope(ctx, timelineID, modalities...)
	if err != nil {
		return nil, err
	}
	return envelope.Contexts(), nil
}

// ContextStrings renders each context for prompt input, keeping order.
func (s *Source) ContextStrings(ctx context.Context, timelineID string, modalities ...manifest.Kind) ([]string, error) {
	contexts, err := s.ProcessedContexts(ctx, timelineID, modalities...)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, c.LLMContextString())
	}
	return out, nil
}

// GroupByContextType buckets contexts by semantic category.
func (s *Source) GroupByContextType(ctx context.Context, timelineID string, modalities ...manifest.Kind) (map[contextmodel.ContextType][]contextmodel.ProcessedContext, error) {
	contexts, err := s.ProcessedContexts(ctx, timelineID, modalities...)
	if err != nil {
		return nil, err
	}
	grouped := contextmodel.GroupByContextType(contexts)
	s.logger.Debug("grouped contexts",
		logging.String(logging.FieldTimelineID, timelineID),
		logging.Int("contexts", len(contexts)),
		logging.Int("groups", len(grouped)),
	)
	return grouped, nil
}
