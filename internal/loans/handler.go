package loans

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

// Handler exposes lending over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds the loans HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers loan endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/loans", h.handleDisburse)
	r.Get("/loans", h.handleList)
	r.Get("/loans/{id}", h.handleGet)
	r.Post("/loans/{id}/payments", h.handlePayment)
	r.Get("/loans/{id}/payments", h.handleListPayments)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotActive),
		errors.Is(err, ErrOverpayment),
		errors.Is(err, ErrBelowInterest),
		errors.Is(err, ErrUnknownFrequency):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		ledger.RespondError(w, err)
	}
}

type disburseRequest struct {
	AccountID    string `json:"account_id" validate:"required,uuid4"`
	Amount       string `json:"amount" validate:"required"`
	Type         string `json:"type" validate:"required"`
	InterestRate string `json:"interest_rate" validate:"required"`
	TermMonths   int    `json:"term_months" validate:"required,min=1"`
	Frequency    string `json:"payment_frequency" validate:"required,oneof=MONTHLY QUARTERLY ANNUALLY"`
	LateFee      string `json:"late_fee"`
	InitiatedBy  string `json:"initiated_by" validate:"required,uuid4"`
	Description  string `json:"description"`
}

func (h *Handler) handleDisburse(w http.ResponseWriter, r *http.Request) {
	var req disburseRequest
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
	lateFee := decimal.Zero
	if req.LateFee != "" {
		if lateFee, err = decimal.NewFromString(req.LateFee); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "late_fee is not a valid amount")
			return
		}
	}

	loan, err := h.service.Disburse(r.Context(), DisburseInput{
		AccountID:    uuid.MustParse(req.AccountID),
		Amount:       amount,
		Type:         req.Type,
		InterestRate: rate,
		TermMonths:   req.TermMonths,
		Frequency:    PaymentFrequency(req.Frequency),
		LateFee:      lateFee,
		InitiatedBy:  uuid.MustParse(req.InitiatedBy),
		Description:  req.Description,
	})
	if err != nil {
		h.logger.Warn("loan disbursement failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loanResponse(loan))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(r.URL.Query().Get("branch_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "branch_id query parameter must be a UUID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	loans, err := h.service.ListLoans(r.Context(), branchID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loans": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "loan id must be a UUID")
		return
	}
	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loanResponse(loan))
}

type paymentRequest struct {
	Amount      string `json:"amount" validate:"required"`
	InitiatedBy string `json:"initiated_by" validate:"required,uuid4"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "loan id must be a UUID")
		return
	}
	var req paymentRequest
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

	payment, err := h.service.RecordPayment(r.Context(), PaymentInput{
		LoanID:      id,
		Amount:      amount,
		InitiatedBy: uuid.MustParse(req.InitiatedBy),
	})
	if err != nil {
		h.logger.Warn("loan payment failed", slog.String("loan", id.String()), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse(payment))
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "loan id must be a UUID")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": out})
}

func loanResponse(l Loan) map[string]any {
	resp := map[string]any{
		"id":                l.ID,
		"from_account":      l.FromAccount,
		"to_account":        l.ToAccount,
		"type":              l.Type,
		"interest_rate":     l.InterestRate.String(),
		"term_months":       l.TermMonths,
		"payment_frequency": l.Frequency,
		"late_fee":          l.LateFee.String(),
		"principal":         l.Principal.String(),
		"outstanding":       l.Outstanding.String(),
		"fully_paid":        l.FullyPaid,
		"status":            l.Status,
		"disbursed_at":      l.DisbursedAt,
		"created_at":        l.CreatedAt,
		"updated_at":        l.UpdatedAt,
	}
	if l.TransactionID != nil {
		resp["transaction_id"] = l.TransactionID
	}
	if l.ClosedAt != nil {
		resp["closed_at"] = l.ClosedAt
	}
	return resp
}

func paymentResponse(p LoanPayment) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"loan_id":        p.LoanID,
		"paid_by":        p.PaidBy,
		"transaction_id": p.TransactionID,
		"amount":         p.Amount.String(),
		"interest_paid":  p.InterestPaid.String(),
		"principal_paid": p.PrincipalPaid.String(),
		"status":         p.Status,
		"created_at":     p.CreatedAt,
	}
}
