package balancesheet

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/platform/httpx"
)

// Handler exposes balance-sheet reads and the annual aggregation trigger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the balance-sheet HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers balance-sheet endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/branches/{id}/balance-sheet", h.handleSnapshot)
	r.Get("/branches/{id}/balance-entries", h.handleListEntries)
	r.Post("/branches/{id}/balance-entries", h.handleAppendEntry)
	r.Get("/annual-balances", h.handleListAnnual)
	r.Post("/annual-balances/run", h.handleRunAnnual)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAggregationRunning):
		httpx.Problem(w, http.StatusConflict, "Aggregation Running", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "branch id must be a UUID")
		return
	}
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(time.RFC3339, raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "as_of must be RFC3339")
			return
		}
	}

	snap, err := h.service.BranchSnapshot(r.Context(), branchID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"branch_id":   snap.BranchID,
		"as_of":       snap.AsOf,
		"assets":      snap.Assets.String(),
		"capital":     snap.Capital.String(),
		"liabilities": snap.Liabilities.String(),
	})
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "branch id must be a UUID")
		return
	}
	kind := Kind(r.URL.Query().Get("kind"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.ListEntries(r.Context(), branchID, kind, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

type appendEntryRequest struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	LineType    string `json:"line_type"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (h *Handler) handleAppendEntry(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "branch id must be a UUID")
		return
	}
	var req appendEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	kind := Kind(req.Kind)
	if kind != KindAsset && kind != KindCapital && kind != KindLiability {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "kind must be ASSET, CAPITAL or LIABILITY")
		return
	}
	if req.LineType == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "line_type is required")
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "value is not a valid amount")
		return
	}

	entry, err := h.service.AppendEntry(r.Context(), Entry{
		BranchID:    branchID,
		Kind:        kind,
		Name:        req.Name,
		LineType:    req.LineType,
		Value:       value,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Warn("append balance entry failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryResponse(entry))
}

func entryResponse(e Entry) map[string]any {
	return map[string]any{
		"id":              e.ID,
		"branch_id":       e.BranchID,
		"kind":            e.Kind,
		"name":            e.Name,
		"line_type":       e.LineType,
		"value":           e.Value.String(),
		"updated_balance": e.UpdatedBalance.String(),
		"status":          e.Status,
		"description":     e.Description,
		"created_at":      e.CreatedAt,
	}
}

func (h *Handler) handleListAnnual(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	balances, err := h.service.ListAnnualBalances(r.Context(), year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(balances))
	for _, ab := range balances {
		out = append(out, annualResponse(ab))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"annual_balances": out})
}

type runAnnualRequest struct {
	Year int `json:"year"`
}

func (h *Handler) handleRunAnnual(w http.ResponseWriter, r *http.Request) {
	var req runAnnualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if req.Year <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year must be a positive integer")
		return
	}

	results, err := h.service.RunAnnual(r.Context(), req.Year)
	if err != nil {
		h.logger.Warn("annual aggregation failed", slog.Int("year", req.Year), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(results))
	for _, ab := range results {
		out = append(out, annualResponse(ab))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"annual_balances": out})
}

func annualResponse(ab AnnualBalance) map[string]any {
	return map[string]any{
		"id":                        ab.ID,
		"branch_id":                 ab.BranchID,
		"accounting_year":           ab.AccountingYear,
		"assets_opening_balance":    ab.AssetsOpeningBalance.String(),
		"assets_closing_balance":    ab.AssetsClosingBalance.String(),
		"capital_opening_balance":   ab.CapitalOpeningBalance.String(),
		"capital_closing_balance":   ab.CapitalClosingBalance.String(),
		"liability_opening_balance": ab.LiabilityOpeningBalance.String(),
		"liability_closing_balance": ab.LiabilityClosingBalance.String(),
		"created_at":                ab.CreatedAt,
	}
}
