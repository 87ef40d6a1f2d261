package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pocket-bank/pocket-bank/internal/platform/httpx"
)

// Handler exposes the read-only audit trail.
type Handler struct {
	logger *slog.Logger
	reader *Reader
}

// NewHandler builds the audit HTTP handler.
func NewHandler(logger *slog.Logger, reader *Reader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reader: reader}
}

// MountRoutes registers the audit endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.reader.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list audit logs failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{
			"id":          e.ID,
			"action":      e.Action,
			"tables":      e.Tables,
			"occurred_at": e.OccurredAt,
		}
		if e.ActorID != nil {
			item["actor_id"] = e.ActorID
		}
		if e.OldValue != nil {
			item["old_value"] = e.OldValue
		}
		if e.NewValue != nil {
			item["new_value"] = e.NewValue
		}
		out = append(out, item)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"audit_logs": out})
}
