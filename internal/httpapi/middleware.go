package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"glass/internal/ingestion"
	"glass/internal/logging"
	"glass/internal/services"
	"glass/internal/store"
)

type timelineKey struct{}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := services.WithRequestID(r.Context(), requestID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.Debug("api request",
				logging.String(logging.FieldCorrelationID, requestID),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", ww.Status()),
				logging.Duration("elapsed", time.Since(started)),
			)
		})
	}
}

// requireTimeline resolves {id} to a stored timeline, answering 400 for
// malformed ids and 404 for unknown ones.
func (h *handler) requireTimeline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := ingestion.ValidateTimelineID(id); err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeline id")
			return
		}
		timeline, err := h.timelines.Get(r.Context(), id)
		if err != nil {
			h.internalError(w, "lookup timeline", err)
			return
		}
		if timeline == nil {
			writeError(w, http.StatusNotFound, "timeline not found")
			return
		}
		ctx := context.WithValue(r.Context(), timelineKey{}, timeline)
		ctx = services.WithTimelineID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func timelineFrom(r *http.Request) *store.Timeline {
	timeline, _ := r.Context().Value(timelineKey{}).(*store.Timeline)
	return timeline
}
