package investments

import (
	"errors"
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

// Handler exposes investments over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the investments HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers investment endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/investments", h.handleOpen)
	r.Get("/investments", h.handleList)
	r.Get("/investments/{id}", h.handleGet)
	r.Post("/investments/{id}/creditings", h.handleCredit)
	r.Get("/investments/{id}/creditings", h.handleListCreditings)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrNegativeInterest):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		ledger.RespondError(w, err)
	}
}

type openRequest struct {
	AccountID    string `json:"account_id" validate:"required,uuid4"`
	Amount       string `json:"amount" validate:"required"`
	Type         string `json:"type" validate:"required"`
	InterestRate string `json:"interest_rate" validate:"required"`
	InitiatedBy  string `json:"initiated_by" validate:"required,uuid4"`
	Description  string `json:"description"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
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
	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "interest_rate is not a valid rate")
		return
	}

	inv, err := h.service.Open(r.Context(), OpenInput{
		AccountID:    uuid.MustParse(req.AccountID),
		Amount:       amount,
		Type:         req.Type,
		InterestRate: rate,
		InitiatedBy:  uuid.MustParse(req.InitiatedBy),
		Description:  req.Description,
	})
	if err != nil {
		h.logger.Warn("open investment failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, investmentResponse(inv))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	status := InvestmentStatus(r.URL.Query().Get("status"))

	investments, err := h.service.ListInvestments(r.Context(), status, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(investments))
	for _, inv := range investments {
		out = append(out, investmentResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"investments": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "investment id must be a UUID")
		return
	}
	inv, err := h.service.GetInvestment(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, investmentResponse(inv))
}

type creditRequest struct {
	Interest    string `json:"interest" validate:"required"`
	InitiatedBy string `json:"initiated_by" validate:"required,uuid4"`
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "investment id must be a UUID")
		return
	}
	var req creditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	interest, err := decimal.NewFromString(req.Interest)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "interest is not a valid amount")
		return
	}

	crediting, err := h.service.Credit(r.Context(), CreditInput{
		InvestmentID: id,
		Interest:     interest,
		InitiatedBy:  uuid.MustParse(req.InitiatedBy),
	})
	if err != nil {
		h.logger.Warn("investment crediting failed", slog.String("investment", id.String()), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, creditingResponse(crediting))
}

func (h *Handler) handleListCreditings(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "investment id must be a UUID")
		return
	}
	creditings, err := h.service.ListCreditings(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(creditings))
	for _, c := range creditings {
		out = append(out, creditingResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"creditings": out})
}

func investmentResponse(inv Investment) map[string]any {
	resp := map[string]any{
		"id":            inv.ID,
		"from_account":  inv.FromAccount,
		"to_account":    inv.ToAccount,
		"type":          inv.Type,
		"principal":     inv.Principal.String(),
		"interest_rate": inv.InterestRate.String(),
		"status":        inv.Status,
		"created_at":    inv.CreatedAt,
		"updated_at":    inv.UpdatedAt,
	}
	if inv.TransactionID != nil {
		resp["transaction_id"] = inv.TransactionID
	}
	if inv.ClosedAt != nil {
		resp["closed_at"] = inv.ClosedAt
	}
	return resp
}

func creditingResponse(c Crediting) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"investment_id":   c.InvestmentID,
		"transaction_id":  c.TransactionID,
		"amount":          c.Amount.String(),
		"interest_earned": c.InterestEarned.String(),
		"status":          c.Status,
		"created_at":      c.CreatedAt,
	}
}
