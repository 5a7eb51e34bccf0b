package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"glass/internal/contextmodel"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/services"
	"glass/internal/store"
)

type handler struct {
	timelines TimelineStore
	manifests ManifestFetcher
	contexts  ContextReader
	logger    *slog.Logger
}

// TimelineView is the JSON shape of a timeline record.
type TimelineView struct {
	TimelineID   string     `json:"timeline_id"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	Transcriber  string     `json:"transcriber,omitempty"`
	SegmentCount int        `json:"segment_count"`
	Attempts     int        `json:"attempts"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewTimelineView converts a stored record for output.
func NewTimelineView(t *store.Timeline) TimelineView {
	return TimelineView{
		TimelineID:   t.ID,
		Source:       t.Source,
		Status:       string(t.Status),
		Transcriber:  t.Transcriber,
		SegmentCount: t.SegmentCount,
		Attempts:     t.Attempts,
		ErrorKind:    t.ErrorKind,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
	}
}

func (h *handler) listTimelines(w http.ResponseWriter, r *http.Request) {
	var statuses []store.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := store.ParseStatus(value)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown status "+value)
			return
		}
		statuses = append(statuses, status)
	}
	timelines, err := h.timelines.List(r.Context(), statuses...)
	if err != nil {
		h.internalError(w, "list timelines", err)
		return
	}
	views := make([]TimelineView, 0, len(timelines))
	for _, t := range timelines {
		views = append(views, NewTimelineView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"timelines": views})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewTimelineView(timelineFrom(r)))
}

func (h *handler) manifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.manifests.FetchManifest(r.Context(), timelineFrom(r).ID)
	if err != nil {
		h.serviceError(w, "fetch manifest", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) items(w http.ResponseWriter, r *http.Request) {
	modalities, ok := parseModalities(w, r)
	if !ok {
		return
	}
	timeline := timelineFrom(r)
	items, err := h.contexts.Items(r.Context(), timeline.ID, modalities...)
	if err != nil {
		h.serviceError(w, "load items", err)
		return
	}
	if items == nil {
		items = []contextmodel.Item{}
	}
	writeJSON(w, http.StatusOK, contextmodel.Envelope{TimelineID: timeline.ID, Source: timeline.Source, Items: items})
}

func (h *handler) processedContexts(w http.ResponseWriter, r *http.Request) {
	modalities, ok := parseModalities(w, r)
	if !ok {
		return
	}
	contexts, err := h.contexts.ProcessedContexts(r.Context(), timelineFrom(r).ID, modalities...)
	if err != nil {
		h.serviceError(w, "load contexts", err)
		return
	}
	if contexts == nil {
		contexts = []contextmodel.ProcessedContext{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contexts": contexts})
}

func (h *handler) contextStrings(w http.ResponseWriter, r *http.Request) {
	modalities, ok := parseModalities(w, r)
	if !ok {
		return
	}
	values, err := h.contexts.ContextStrings(r.Context(), timelineFrom(r).ID, modalities...)
	if err != nil {
		h.serviceError(w, "load context strings", err)
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strings": values})
}

func (h *handler) groups(w http.ResponseWriter, r *http.Request) {
	modalities, ok := parseModalities(w, r)
	if !ok {
		return
	}
	grouped, err := h.contexts.GroupByContextType(r.Context(), timelineFrom(r).ID, modalities...)
	if err != nil {
		h.serviceError(w, "group contexts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": grouped})
}

func parseModalities(w http.ResponseWriter, r *http.Request) ([]manifest.Kind, bool) {
	var kinds []manifest.Kind
	for _, raw := range r.URL.Query()["modality"] {
		for _, value := range strings.Split(raw, ",") {
			if strings.TrimSpace(value) == "" {
				continue
			}
			kind, ok := manifest.ParseKind(value)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown modality "+value)
				return nil, false
			}
			kinds = append(kinds, kind)
		}
	}
	return kinds, true
}

// serviceError maps the error taxonomy onto HTTP status codes.
func (h *handler) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrFailed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: services.Details(err).Code})
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, op, err)
	}
}

func (h *handler) internalError(w http.ResponseWriter, op string, err error) {
	logging.ErrorWithContext(h.logger, op+" failed", "api_error", logging.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
