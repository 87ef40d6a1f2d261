package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/income"
	"github.com/pocket-bank/pocket-bank/internal/investments"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/loans"
	"github.com/pocket-bank/pocket-bank/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	LedgerHandler       *ledger.Handler
	LoansHandler        *loans.Handler
	InvestmentsHandler  *investments.Handler
	IncomeHandler       *income.Handler
	BalanceSheetHandler *balancesheet.Handler
	AuditHandler        *audit.Handler
	JobsHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the default middleware chain and
// every API module mounted under /api.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		params.LedgerHandler.MountRoutes(api)
		params.LoansHandler.MountRoutes(api)
		params.InvestmentsHandler.MountRoutes(api)
		params.IncomeHandler.MountRoutes(api)
		params.BalanceSheetHandler.MountRoutes(api)
		params.AuditHandler.MountRoutes(api)
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(api)
		}
	})

	return r
}
