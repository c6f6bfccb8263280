package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
	"github.com/molam/treasury/internal/ingestion"
	"github.com/molam/treasury/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	payoutRepo    *repository.PayoutRepo
	statementRepo *repository.StatementRepo
	slaRepo       *repository.SLARepo
	ticketRepo    *repository.TicketRepo
	ledgerRepo    *repository.LedgerRepo
	ingestionSvc  *ingestion.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- CreatePayout ---

type createPayoutRequest struct {
	ExternalID     string          `json:"external_id"`
	OriginModule   string          `json:"origin_module"`
	OriginEntityID string          `json:"origin_entity_id"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	DestinationID  string          `json:"destination_id"`
}

func (h *Handlers) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.ExternalID == "" || req.OriginModule == "" || req.OriginEntityID == "" ||
		req.Currency == "" || req.DestinationID == "" {
		writeError(w, http.StatusBadRequest, "external_id, origin_module, origin_entity_id, currency and destination_id are required")
		return
	}
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	method := domain.PayoutMethod(req.Method)
	if !method.Valid() {
		writeError(w, http.StatusBadRequest, "method must be one of instant, priority, batch")
		return
	}

	payout := &domain.Payout{
		ID:             uuid.NewString(),
		ExternalID:     req.ExternalID,
		OriginModule:   req.OriginModule,
		OriginEntityID: req.OriginEntityID,
		Currency:       req.Currency,
		Amount:         req.Amount,
		Method:         method,
		DestinationID:  req.DestinationID,
		Status:         domain.PayoutPending,
		RequestedAt:    time.Now(),
	}

	created, err := h.payoutRepo.Insert(payout)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !created {
		// Retried creation: hand back the existing payout.
		existing, err := h.payoutRepo.GetByExternalID(req.ExternalID)
		if err != nil || existing == nil {
			writeError(w, http.StatusInternalServerError, "duplicate external_id lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, existing)
		return
	}

	writeJSON(w, http.StatusCreated, payout)
}

// --- GetPayout / ListPayouts ---

func (h *Handlers) GetPayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	payout, err := h.payoutRepo.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if payout == nil {
		writeError(w, http.StatusNotFound, "payout not found")
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PayoutFilter{
		Status:   q.Get("status"),
		Method:   q.Get("method"),
		Currency: q.Get("currency"),
		From:     parseTime(q.Get("from")),
		To:       parseTime(q.Get("to")),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	payouts, total, err := h.payoutRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payouts": payouts,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// --- Statement ingestion ---

type ingestLinesRequest struct {
	Lines []struct {
		Reference     string          `json:"reference"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		StatementDate string          `json:"statement_date"`
	} `json:"lines"`
}

func (h *Handlers) IngestStatementLines(w http.ResponseWriter, r *http.Request) {
	var req ingestLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "lines are required")
		return
	}

	lines := make([]domain.BankStatementLine, 0, len(req.Lines))
	for i, in := range req.Lines {
		if in.Reference == "" || in.Currency == "" {
			writeError(w, http.StatusBadRequest, "line "+strconv.Itoa(i)+": reference and currency are required")
			return
		}
		date := parseTime(in.StatementDate)
		if date == nil {
			writeError(w, http.StatusBadRequest, "line "+strconv.Itoa(i)+": invalid statement_date")
			return
		}
		lines = append(lines, domain.BankStatementLine{
			Reference:     in.Reference,
			Amount:        in.Amount,
			Currency:      in.Currency,
			StatementDate: *date,
		})
	}

	inserted, err := h.ingestionSvc.IngestLines(lines)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lines_ingested":     inserted,
		"duplicates_skipped": len(lines) - inserted,
	})
}

func (h *Handlers) UploadStatementFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	source := r.FormValue("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.ingestionSvc.IngestFile(data, source)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListStatementLines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.StatementFilter{
		Status: q.Get("status"),
		From:   parseTime(q.Get("from")),
		To:     parseTime(q.Get("to")),
		Page:   parseIntDefault(q.Get("page"), 1),
		Limit:  parseIntDefault(q.Get("limit"), 50),
	}

	lines, total, err := h.statementRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// --- SLA stats ---

func (h *Handlers) GetSLAStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.slaRepo.StatsByRail()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rails": stats})
}

// --- Tickets ---

func (h *Handlers) ListOpenTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.ticketRepo.ListOpen()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

// --- Ledger ---

func (h *Handlers) GetAccountEntries(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	entries, err := h.ledgerRepo.EntriesByAccount(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"entries": entries,
	})
}

// --- Dashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	payoutCounts, err := h.payoutRepo.StatusCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lineCounts, err := h.statementRepo.StatusCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tickets, err := h.ticketRepo.ListOpen()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payouts":         payoutCounts,
		"statement_lines": lineCounts,
		"open_tickets":    len(tickets),
		"generated_at":    time.Now(),
	})
}
