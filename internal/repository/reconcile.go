package repository

import (
	"context"
	"fmt"

	"glass/internal/contextmodel"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/services"
)

// ReconcileReport summarizes a Reconcile pass.
type ReconcileReport struct {
	TimelineID string
	Checked    int
	Missing    int
	Restored   int
	Unresolved int
}

// Reconcile re-creates vector records that relational rows reference but
// the vector store lacks, rebuilding them from the stored manifest. Rows
// that cannot be rebuilt are marked as not embedding-ready.
func (r *Repository) Reconcile(ctx context.Context, timelineID string) (ReconcileReport, error) {
	report := ReconcileReport{TimelineID: timelineID}
	if r.assembler == nil {
		return report, services.Wrap(services.ErrConfiguration, "reconcile", "rebuild items", "no assembler configured", nil)
	}
	timeline, err := r.store.Get(ctx, timelineID)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "reconcile", "load timeline", timelineID, err)
	}
	if timeline == nil {
		return report, services.Wrap(services.ErrNotFound, "reconcile", "load timeline", timelineID, nil)
	}
	if !timeline.HasManifest() {
		return report, services.Wrap(services.ErrInProgress, "reconcile", "load timeline",
			fmt.Sprintf("timeline is %s without a completed manifest", timeline.Status), nil)
	}

	rows, err := r.store.ListContextRows(ctx, timelineID)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "reconcile", "list contexts", timelineID, err)
	}
	report.Checked = len(rows)

	var missing []string
	missingType := make(map[string]contextmodel.ContextType)
	for _, row := range rows {
		contextType, ok := contextmodel.ParseContextType(row.ContextType)
		if !ok {
			continue
		}
		pc, err := r.vectors.Get(ctx, contextType, row.ContextID)
		if err != nil {
			return report, services.Wrap(services.ErrTransient, "reconcile", "load vector record", row.ContextID, err)
		}
		if pc == nil {
			missing = append(missing, row.ContextID)
			missingType[row.ContextID] = contextType
		}
	}
	report.Missing = len(missing)
	if len(missing) == 0 {
		return report, nil
	}

	m, err := manifest.Parse([]byte(timeline.ManifestJSON))
	if err != nil {
		return report, services.Wrap(services.ErrMalformed, "reconcile", "parse manifest", timelineID, err)
	}
	rebuilt, err := r.assembler.BuildItems(ctx, m)
	if err != nil {
		return report, services.Wrap(services.ErrMalformed, "reconcile", "rebuild items", timelineID, err)
	}
	byID := make(map[string]contextmodel.Item, len(rebuilt))
	for _, item := range rebuilt {
		byID[item.Context.ID] = item
	}

	var (
		restore    []contextmodel.Item
		unresolved []string
	)
	for _, id := range missing {
		item, ok := byID[id]
		if !ok || item.Context.Type() != missingType[id] {
			unresolved = append(unresolved, id)
			continue
		}
		restore = append(restore, item)
	}

	if len(restore) > 0 {
		ids, _, err := r.writeVectors(ctx, restore)
		if err != nil {
			return report, err
		}
		report.Restored = len(ids)
	}
	if len(unresolved) > 0 {
		if _, err := r.store.SetEmbeddingReady(ctx, false, unresolved...); err != nil {
			return report, services.Wrap(services.ErrTransient, "reconcile", "flag unresolved", timelineID, err)
		}
		report.Unresolved = len(unresolved)
	}

	logging.WithTimeline(r.logger, timelineID).Info("timeline reconciled",
		logging.String(logging.FieldEventType, "timeline_reconciled"),
		logging.Int("checked", report.Checked),
		logging.Int("missing", report.Missing),
		logging.Int("restored", report.Restored),
		logging.Int("unresolved", report.Unresolved),
	)
	return report, nil
}
