package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/platform/httpx"
)

// RespondError maps the ledger error taxonomy to RFC7807 responses.
// ValidationError is always the caller's fault; ConfigurationError signals a
// deployment or seeding defect. Sibling workflow handlers fall back to it
// after mapping their own sentinels.
func RespondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var cerr *ConfigurationError
	switch {
	case errors.As(err, &verr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.As(err, &cerr):
		httpx.Problem(w, http.StatusInternalServerError, "Configuration Error", cerr.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Handler exposes accounts and transactions over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account and transaction endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts", h.handleCreateAccount)
	r.Get("/accounts/{id}", h.handleGetAccount)
	r.Post("/transactions", h.handleSubmit)
	r.Get("/transactions", h.handleListTransactions)
	r.Get("/transactions/{id}", h.handleGetTransaction)
	r.Post("/transactions/{id}/reverse", h.handleReverse)
}

type createAccountRequest struct {
	OwnerID        string `json:"owner_id" validate:"required,uuid4"`
	Type           string `json:"type" validate:"required"`
	BranchID       string `json:"branch_id" validate:"omitempty,uuid4"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	OpeningBalance string `json:"opening_balance"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := CreateAccountInput{
		OwnerID:     uuid.MustParse(req.OwnerID),
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
	}
	if req.BranchID != "" {
		in.BranchID = uuid.MustParse(req.BranchID)
	}
	if req.OpeningBalance != "" {
		opening, err := decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "opening_balance is not a valid amount")
			return
		}
		in.OpeningBalance = opening
	}

	account, err := h.service.CreateAccount(r.Context(), in)
	if err != nil {
		h.logger.Warn("create account failed", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, accountResponse(account))
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be a UUID")
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accountResponse(account))
}

type submitRequest struct {
	SenderID    string `json:"sender_id" validate:"omitempty,uuid4"`
	RecipientID string `json:"recipient_id" validate:"omitempty,uuid4"`
	Type        string `json:"type" validate:"required"`
	Direction   string `json:"direction" validate:"required,oneof=INTERNAL EXTERNAL"`
	Amount      string `json:"amount" validate:"required"`
	InitiatedBy string `json:"initiated_by" validate:"required,uuid4"`
	BranchID    string `json:"branch_id" validate:"required,uuid4"`
	ExternalRef string `json:"external_ref"`
	Description string `json:"description"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
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

	in := SubmitInput{
		Type:        TransactionType(req.Type),
		Direction:   Direction(req.Direction),
		Amount:      amount,
		InitiatedBy: uuid.MustParse(req.InitiatedBy),
		BranchID:    uuid.MustParse(req.BranchID),
		ExternalRef: req.ExternalRef,
		Description: req.Description,
	}
	if req.SenderID != "" {
		id := uuid.MustParse(req.SenderID)
		in.SenderID = &id
	}
	if req.RecipientID != "" {
		id := uuid.MustParse(req.RecipientID)
		in.RecipientID = &id
	}

	txn, err := h.service.Submit(r.Context(), in)
	if err != nil {
		h.logger.Warn("submit transaction failed", slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transactionResponse(txn))
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(r.URL.Query().Get("branch_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "branch_id query parameter must be a UUID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.service.ListTransactions(r.Context(), branchID, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "transaction id must be a UUID")
		return
	}
	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transactionResponse(txn))
}

type reverseRequest struct {
	InitiatedBy string `json:"initiated_by" validate:"required,uuid4"`
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "transaction id must be a UUID")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	reversal, err := h.service.Reverse(r.Context(), id, uuid.MustParse(req.InitiatedBy))
	if err != nil {
		h.logger.Warn("reverse transaction failed", slog.String("transaction", id.String()), slog.Any("error", err))
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transactionResponse(reversal))
}

func accountResponse(a Account) map[string]any {
	resp := map[string]any{
		"id":          a.ID,
		"number":      a.Number,
		"name":        a.Name,
		"owner_id":    a.OwnerID,
		"type":        a.Type,
		"branch_id":   a.BranchID,
		"balance":     a.Balance.String(),
		"status":      a.Status,
		"description": a.Description,
		"created_at":  a.CreatedAt,
		"updated_at":  a.UpdatedAt,
	}
	if a.ClosedAt != nil {
		resp["closed_at"] = a.ClosedAt
	}
	return resp
}

func transactionResponse(t Transaction) map[string]any {
	resp := map[string]any{
		"id":           t.ID,
		"type":         t.Type,
		"direction":    t.Direction,
		"amount":       t.Amount.String(),
		"status":       t.Status,
		"initiated_by": t.InitiatedBy,
		"branch_id":    t.BranchID,
		"description":  t.Description,
		"created_at":   t.CreatedAt,
	}
	if t.SenderID != nil {
		resp["sender_id"] = t.SenderID
	}
	if t.RecipientID != nil {
		resp["recipient_id"] = t.RecipientID
	}
	if t.SenderBalance != nil {
		resp["sender_balance"] = t.SenderBalance.String()
	}
	if t.RecipientBalance != nil {
		resp["recipient_balance"] = t.RecipientBalance.String()
	}
	if t.ExternalRef != "" {
		resp["external_ref"] = t.ExternalRef
	}
	return resp
}
