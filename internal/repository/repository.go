package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"glass/internal/contextmodel"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/services"
	"glass/internal/store"
	"glass/internal/vectorstore"
)

const stagePersistence = "persistence"

// Assembler rebuilds items from a stored manifest. Used by Reconcile.
type Assembler interface {
	BuildItems(ctx context.Context, m *manifest.Manifest) ([]contextmodel.Item, error)
}

// Repository owns every write of context items.
type Repository struct {
	store     *store.Store
	vectors   vectorstore.Store
	assembler Assembler
	logger    *slog.Logger
}

// Option customizes a Repository.
type Option func(*Repository)

// WithAssembler enables Reconcile.
func WithAssembler(assembler Assembler) Option {
	return func(r *Repository) { r.assembler = assembler }
}

// WithLogger sets the repository logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New wires a repository to its stores.
func New(st *store.Store, vectors vectorstore.Store, opts ...Option) (*Repository, error) {
	if st == nil {
		return nil, errors.New("repository: store is nil")
	}
	if vectors == nil {
		return nil, errors.New("repository: vector store is nil")
	}
	r := &Repository{store: st, vectors: vectors, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "repository")
	return r, nil
}

// Upsert writes items to both stores and returns the vector id of each item
// at the same index as its input.
func (r *Repository) Upsert(ctx context.Context, items []contextmodel.Item) ([]string, error) {
	if len(items) == 0 {
		return []string{}, nil
	}
	ids, rows, err := r.writeVectors(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpsertContextRows(ctx, rows); err != nil {
		return nil, services.Wrap(services.ErrTransient, stagePersistence, "relational upsert", "context rows rolled back", err)
	}
	r.logger.Debug("contexts upserted", logging.Int("count", len(ids)))
	return ids, nil
}

// PersistTimeline stores the items of a completed run together with its
// manifest. The timeline's previous rows are replaced in the same
// transaction that marks it completed.
func (r *Repository) PersistTimeline(ctx context.Context, m *manifest.Manifest, items []contextmodel.Item, transcriber string) ([]string, error) {
	if m == nil {
		return nil, services.Wrap(services.ErrValidation, stagePersistence, "persist timeline", "manifest is nil", nil)
	}
	for i, item := range items {
		if item.TimelineID != m.TimelineID() {
			return nil, services.Wrap(services.ErrValidation, stagePersistence, "persist timeline",
				fmt.Sprintf("item %d belongs to timeline %q", i, item.TimelineID), nil)
		}
	}
	manifestJSON, err := m.MarshalJSON()
	if err != nil {
		return nil, services.Wrap(services.ErrMalformed, stagePersistence, "encode manifest", "", err)
	}

	ids, rows, err := r.writeVectors(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := r.store.CompleteTimeline(ctx, m.TimelineID(), store.Completion{
		ManifestJSON: string(manifestJSON),
		SegmentCount: m.Len(),
		Transcriber:  transcriber,
		Rows:         rows,
	}); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return nil, services.Wrap(services.ErrInconsistent, stagePersistence, "complete timeline", "timeline left processing during run", err)
		}
		return nil, services.Wrap(services.ErrTransient, stagePersistence, "complete timeline", "relational changes rolled back", err)
	}
	logging.WithTimeline(r.logger, m.TimelineID()).Info("timeline persisted",
		logging.String(logging.FieldEventType, "timeline_persisted"),
		logging.Int("contexts", len(ids)),
		logging.Int("segments", m.Len()),
	)
	return ids, nil
}

// writeVectors runs the vector phase and builds the aligned relational rows.
func (r *Repository) writeVectors(ctx context.Context, items []contextmodel.Item) ([]string, []store.ContextRow, error) {
	batches, order, err := groupByCategory(items)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(items))
	for _, contextType := range order {
		indices := batches[contextType]
		contexts := make([]contextmodel.ProcessedContext, len(indices))
		for pos, idx := range indices {
			contexts[pos] = items[idx].Context
		}
		returned, err := r.vectors.BatchUpsert(ctx, contextType, contexts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			return nil, nil, services.Wrap(services.ErrTransient, stagePersistence, "vector upsert",
				fmt.Sprintf("category %s via %s", contextType, r.vectors.Name()), err)
		}
		if len(returned) != len(indices) {
			return nil, nil, services.Wrap(services.ErrInconsistent, stagePersistence, "vector upsert",
				fmt.Sprintf("category %s returned %d ids for %d items", contextType, len(returned), len(indices)), nil)
		}
		for pos, idx := range indices {
			if strings.TrimSpace(returned[pos]) == "" {
				return nil, nil, services.Wrap(services.ErrInconsistent, stagePersistence, "vector upsert",
					fmt.Sprintf("category %s returned an empty id at position %d", contextType, pos), nil)
			}
			ids[idx] = returned[pos]
		}
	}

	rows := make([]store.ContextRow, len(items))
	for i, item := range items {
		rows[i] = rowFor(item, ids[i])
	}
	return ids, rows, nil
}

// groupByCategory returns input indices per category and the categories in
// first-seen order.
func groupByCategory(items []contextmodel.Item) (map[contextmodel.ContextType][]int, []contextmodel.ContextType, error) {
	batches := make(map[contextmodel.ContextType][]int)
	var order []contextmodel.ContextType
	for i, item := range items {
		contextType := item.Context.Type()
		if strings.TrimSpace(string(contextType)) == "" {
			return nil, nil, services.Wrap(services.ErrValidation, stagePersistence, "group items",
				fmt.Sprintf("item %d has no context type", i), nil)
		}
		if strings.TrimSpace(string(item.Modality)) == "" {
			return nil, nil, services.Wrap(services.ErrValidation, stagePersistence, "group items",
				fmt.Sprintf("item %d has no modality", i), nil)
		}
		if strings.TrimSpace(item.TimelineID) == "" {
			return nil, nil, services.Wrap(services.ErrValidation, stagePersistence, "group items",
				fmt.Sprintf("item %d has no timeline id", i), nil)
		}
		if _, seen := batches[contextType]; !seen {
			order = append(order, contextType)
		}
		batches[contextType] = append(batches[contextType], i)
	}
	return batches, order, nil
}

func rowFor(item contextmodel.Item, contextID string) store.ContextRow {
	return store.ContextRow{
		TimelineID:     item.TimelineID,
		ContextID:      contextID,
		Modality:       string(item.Modality),
		ContentRef:     item.ContentRef,
		EmbeddingReady: item.EmbeddingReady,
		ContextType:    string(item.Context.Type()),
		SegmentStart:   item.Context.Metadata.SegmentStart,
		SegmentEnd:     item.Context.Metadata.SegmentEnd,
	}
}

// LoadEnvelope rebuilds the envelope of a timeline, most recent content
// first. It returns nil when the timeline has no stored rows. Rows whose
// vector record is missing are skipped.
func (r *Repository) LoadEnvelope(ctx context.Context, timelineID string, modalities ...manifest.Kind) (*contextmodel.Envelope, error) {
	filter := make([]string, 0, len(modalities))
	for _, modality := range modalities {
		filter = append(filter, string(modality))
	}
	rows, err := r.store.ListContextRows(ctx, timelineID, filter...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "read", "list contexts", timelineID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	logger := logging.WithTimeline(r.logger, timelineID)
	envelope := &contextmodel.Envelope{TimelineID: timelineID, Items: make([]contextmodel.Item, 0, len(rows))}
	for _, row := range rows {
		modality, ok := manifest.ParseKind(row.Modality)
		if !ok {
			logger.Debug("skipping row with unknown modality", logging.String("context_id", row.ContextID), logging.String("modality", row.Modality))
			continue
		}
		contextType, ok := contextmodel.ParseContextType(row.ContextType)
		if !ok {
			logger.Debug("skipping row with unknown context type", logging.String("context_id", row.ContextID), logging.String("context_type", row.ContextType))
			continue
		}
		pc, err := r.vectors.Get(ctx, contextType, row.ContextID)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "read", "load vector record", row.ContextID, err)
		}
		if pc == nil {
			logger.Debug("vector record missing", logging.String("context_id", row.ContextID))
			continue
		}
		envelope.Items = append(envelope.Items, contextmodel.Item{
			Context:        *pc,
			TimelineID:     row.TimelineID,
			Modality:       modality,
			ContentRef:     row.ContentRef,
			EmbeddingReady: row.EmbeddingReady,
		})
	}
	envelope.Source = resolveSource(envelope, timelineID)
	return envelope, nil
}

func resolveSource(envelope *contextmodel.Envelope, fallback string) string {
	for _, item := range envelope.Items {
		if source := strings.TrimSpace(item.Context.Metadata.SourceVideo); source != "" {
			return source
		}
	}
	return fallback
}

// MarkEmbeddingReady flips the embedding flag of stored rows.
func (r *Repository) MarkEmbeddingReady(ctx context.Context, ready bool, contextIDs ...string) (int64, error) {
	n, err := r.store.SetEmbeddingReady(ctx, ready, contextIDs...)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, stagePersistence, "mark embedding ready", "", err)
	}
	return n, nil
}

// AttachSummary stores derived summary data as JSON on a context row.
func (r *Repository) AttachSummary(ctx context.Context, contextID string, summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return services.Wrap(services.ErrValidation, stagePersistence, "attach summary", "encode summary", err)
	}
	found, err := r.store.SetAutoSummary(ctx, contextID, string(data))
	if err != nil {
		return services.Wrap(services.ErrTransient, stagePersistence, "attach summary", contextID, err)
	}
	if !found {
		return services.Wrap(services.ErrNotFound, stagePersistence, "attach summary", "unknown context "+contextID, nil)
	}
	return nil
}
