package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/molam/treasury/internal/ingestion"
	"github.com/molam/treasury/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	payoutRepo *repository.PayoutRepo,
	statementRepo *repository.StatementRepo,
	slaRepo *repository.SLARepo,
	ticketRepo *repository.TicketRepo,
	ledgerRepo *repository.LedgerRepo,
	ingestionSvc *ingestion.Service,
) http.Handler {
	h := &Handlers{
		payoutRepo:    payoutRepo,
		statementRepo: statementRepo,
		slaRepo:       slaRepo,
		ticketRepo:    ticketRepo,
		ledgerRepo:    ledgerRepo,
		ingestionSvc:  ingestionSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Payout intake.
		r.Post("/payouts", h.CreatePayout)
		r.Get("/payouts", h.ListPayouts)
		r.Get("/payouts/{id}", h.GetPayout)

		// Statement ingestion.
		r.Post("/statements", h.IngestStatementLines)
		r.Post("/statements/upload", h.UploadStatementFile)
		r.Get("/statements", h.ListStatementLines)

		// SLA analytics.
		r.Get("/sla", h.GetSLAStats)

		// Manual review.
		r.Get("/tickets", h.ListOpenTickets)

		// Ledger.
		r.Get("/ledger/{account}", h.GetAccountEntries)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
