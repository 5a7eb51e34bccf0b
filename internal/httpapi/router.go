package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"glass/internal/contextmodel"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/store"
)

// TimelineStore is the relational lookup the API needs.
type TimelineStore interface {
	Get(ctx context.Context, timelineID string) (*store.Timeline, error)
	List(ctx context.Context, statuses ...store.Status) ([]*store.Timeline, error)
}

// ManifestFetcher returns the manifest of a completed timeline.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, timelineID string) (*manifest.Manifest, error)
}

// ContextReader is the timeline context source.
type ContextReader interface {
	Items(ctx context.Context, timelineID string, modalities ...manifest.Kind) ([]contextmodel.Item, error)
	ProcessedContexts(ctx context.Context, timelineID string, modalities ...manifest.Kind) ([]contextmodel.ProcessedContext, error)
	ContextStrings(ctx context.Context, timelineID string, modalities ...manifest.Kind) ([]string, error)
	GroupByContextType(ctx context.Context, timelineID string, modalities ...manifest.Kind) (map[contextmodel.ContextType][]contextmodel.ProcessedContext, error)
}

// NewRouter builds the chi router for the debug API.
func NewRouter(timelines TimelineStore, manifests ManifestFetcher, contexts ContextReader, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &handler{
		timelines: timelines,
		manifests: manifests,
		contexts:  contexts,
		logger:    logging.NewComponentLogger(logger, "api-server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Route("/api/timelines", func(r chi.Router) {
		r.Get("/", h.listTimelines)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.requireTimeline)
			r.Get("/status", h.status)
			r.Get("/manifest", h.manifest)
			r.Get("/items", h.items)
			r.Get("/contexts", h.processedContexts)
			r.Get("/strings", h.contextStrings)
			r.Get("/groups", h.groups)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
