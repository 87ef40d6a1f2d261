package income

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/platform/httpx"
)

// Handler exposes income recording over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the income HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers income endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/incomes", h.handleRecord)
	r.Get("/incomes", h.handleList)
}

type recordRequest struct {
	Type        string `json:"type" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
	ExternalRef string `json:"external_ref" validate:"required"`
	InitiatedBy string `json:"initiated_by" validate:"required,uuid4"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid amount")
		return
	}

	inc, err := h.service.Record(r.Context(), RecordInput{
		Type:        req.Type,
		Amount:      amount,
		Description: req.Description,
		ExternalRef: req.ExternalRef,
		InitiatedBy: uuid.MustParse(req.InitiatedBy),
	})
	if err != nil {
		h.logger.Warn("record income failed", slog.Any("error", err))
		ledger.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, incomeResponse(inc))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	incomes, err := h.service.ListIncomes(r.Context(), limit)
	if err != nil {
		ledger.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(incomes))
	for _, inc := range incomes {
		out = append(out, incomeResponse(inc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"incomes": out})
}

func incomeResponse(inc Income) map[string]any {
	return map[string]any{
		"id":             inc.ID,
		"type":           inc.Type,
		"amount":         inc.Amount.String(),
		"description":    inc.Description,
		"transaction_id": inc.TransactionID,
		"received_at":    inc.ReceivedAt,
	}
}
