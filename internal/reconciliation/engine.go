package reconciliation

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
	"github.com/molam/treasury/internal/ledger"
	"github.com/molam/treasury/internal/repository"
)

// Result summarises one reconciliation run.
type Result struct {
	Lines      int `json:"lines"`
	Matched    int `json:"matched"`
	Suspicious int `json:"suspicious"`
	Deferred   int `json:"deferred"`
}

// Config tunes matching. ToleranceBps is the fuzzy amount tolerance in
// basis points; the default 50 allows ±0.5%.
type Config struct {
	ToleranceBps int64
}

const defaultToleranceBps = 50

// Engine matches unmatched bank statement lines against sent payouts:
// exact by bank reference first, then a single-candidate fuzzy pass, and
// anything unresolved goes to manual review. Every match is attempted
// against current payout state, never a snapshot.
type Engine struct {
	db           *sql.DB
	payouts      *repository.PayoutRepo
	instructions *repository.InstructionRepo
	statements   *repository.StatementRepo
	tickets      *repository.TicketRepo
	audit        *repository.AuditRepo
	ledger       *ledger.Facade
	cfg          Config
}

func NewEngine(
	db *sql.DB,
	payouts *repository.PayoutRepo,
	instructions *repository.InstructionRepo,
	statements *repository.StatementRepo,
	tickets *repository.TicketRepo,
	audit *repository.AuditRepo,
	ledgerFacade *ledger.Facade,
	cfg Config,
) *Engine {
	if cfg.ToleranceBps <= 0 {
		cfg.ToleranceBps = defaultToleranceBps
	}
	return &Engine{
		db:           db,
		payouts:      payouts,
		instructions: instructions,
		statements:   statements,
		tickets:      tickets,
		audit:        audit,
		ledger:       ledgerFacade,
		cfg:          cfg,
	}
}

// Run polls on the given interval until the context is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[reconciliation] engine started, interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[reconciliation] engine stopped")
			return
		case <-ticker.C:
			res, err := e.Reconcile(ctx)
			if err != nil {
				log.Printf("[reconciliation] run error: %v", err)
				continue
			}
			if res.Lines > 0 {
				log.Printf("[reconciliation] run done: lines=%d matched=%d suspicious=%d deferred=%d",
					res.Lines, res.Matched, res.Suspicious, res.Deferred)
			}
		}
	}
}

// reconcilePageSize bounds how many unmatched lines are held in memory
// at once; the cursor walks (ingested_at, id) so matched lines dropping
// out of the set mid-run cannot shift the window.
const reconcilePageSize = 500

// Reconcile processes all currently unmatched statement lines, one page
// at a time. Lines whose finalize fails stay unmatched and are retried
// on the next run.
func (e *Engine) Reconcile(ctx context.Context) (*Result, error) {
	res := &Result{}

	var (
		cursorTime time.Time
		cursorID   string
	)
	for {
		lines, err := e.statements.GetUnmatchedPage(cursorTime, cursorID, reconcilePageSize)
		if err != nil {
			return res, fmt.Errorf("get unmatched page: %w", err)
		}
		if len(lines) == 0 {
			return res, nil
		}

		res.Lines += len(lines)
		for i := range lines {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			ln := &lines[i]
			switch err := e.matchLine(ln); {
			case err == nil:
				res.Matched++
			case err == errSuspicious:
				res.Suspicious++
			default:
				// Left unmatched for the next run.
				log.Printf("[reconciliation] line %s deferred: %v", ln.ID, err)
				res.Deferred++
			}
		}

		last := lines[len(lines)-1]
		cursorTime, cursorID = last.IngestedAt, last.ID
		if len(lines) < reconcilePageSize {
			return res, nil
		}
	}
}

// errSuspicious signals that the line was escalated rather than matched.
var errSuspicious = fmt.Errorf("line escalated to suspicious")

func (e *Engine) matchLine(ln *domain.BankStatementLine) error {
	// Exact match: the line's reference is a bank_ref we handed out.
	// Reference precedence is absolute; the fuzzy pass is never consulted
	// when a reference hit exists.
	instruction, err := e.instructions.GetByBankRef(ln.Reference)
	if err != nil {
		return fmt.Errorf("lookup bank_ref %s: %w", ln.Reference, err)
	}
	if instruction != nil {
		payout, err := e.payouts.GetByID(instruction.PayoutID)
		if err != nil {
			return fmt.Errorf("load payout %s: %w", instruction.PayoutID, err)
		}
		if payout == nil {
			return e.escalate(ln, fmt.Sprintf("instruction %s references missing payout %s",
				instruction.ID, instruction.PayoutID))
		}

		// A reference hit with a differing amount or currency is never
		// auto-settled; it goes to review with both figures attached.
		if ln.Currency != payout.Currency || !ln.Amount.Equal(payout.Amount) {
			return e.escalate(ln, fmt.Sprintf(
				"reference %s matches payout %s but amounts differ: statement %s %s vs payout %s %s",
				ln.Reference, payout.ID, ln.Amount, ln.Currency, payout.Amount, payout.Currency))
		}

		return e.finalizeMatch(payout, ln)
	}

	// Fuzzy match: in-flight payouts in the same currency, requested the
	// same calendar day, amount within tolerance. Exactly one candidate or
	// nothing.
	candidates, err := e.payouts.FuzzyCandidates(ln.Currency, ln.StatementDate)
	if err != nil {
		return fmt.Errorf("fuzzy candidates: %w", err)
	}

	var eligible []domain.Payout
	for _, c := range candidates {
		if e.withinTolerance(ln.Amount, c.Amount) {
			eligible = append(eligible, c)
		}
	}

	switch len(eligible) {
	case 1:
		return e.finalizeMatch(&eligible[0], ln)
	case 0:
		return e.escalate(ln, fmt.Sprintf("no payout matches reference %s (%s %s on %s)",
			ln.Reference, ln.Amount, ln.Currency, ln.StatementDate.Format("2006-01-02")))
	default:
		return e.escalate(ln, fmt.Sprintf("%d equally-eligible payouts for reference %s, refusing to guess",
			len(eligible), ln.Reference))
	}
}

func (e *Engine) withinTolerance(lineAmount, payoutAmount decimal.Decimal) bool {
	tolerance := lineAmount.Abs().Mul(decimal.NewFromInt(e.cfg.ToleranceBps)).Div(decimal.NewFromInt(10000))
	return payoutAmount.Sub(lineAmount).Abs().Cmp(tolerance) <= 0
}

// finalizeMatch commits the whole match atomically: line matched, payout
// settled, hold finalized, audit entry written. Any failure rolls all of
// it back and leaves the line unmatched for the next run.
func (e *Engine) finalizeMatch(payout *domain.Payout, ln *domain.BankStatementLine) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := e.statements.MarkMatchedTx(tx, ln.ID, payout.ID); err != nil {
		return err
	}
	if err := e.payouts.MarkSettledTx(tx, payout.ID); err != nil {
		return err
	}
	if err := e.ledger.FinalizeHoldTx(tx, domain.HoldRef(payout.ID)); err != nil {
		return err
	}

	detail := fmt.Sprintf("line %s (ref=%s, %s %s) matched to payout %s",
		ln.ID, ln.Reference, ln.Amount, ln.Currency, payout.ID)
	if err := e.audit.InsertTx(tx, uuid.NewString(), payout.ID, "reconciliation.match", detail, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[reconciliation] matched line %s -> payout %s", ln.ID, payout.ID)
	return nil
}

// escalate marks the line suspicious and raises an ops ticket for manual
// review, in one transaction: a suspicious line always has its ticket.
// Never guessed, always surfaced.
func (e *Engine) escalate(ln *domain.BankStatementLine, reason string) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	changed, err := e.statements.MarkSuspiciousTx(tx, ln.ID)
	if err != nil {
		return err
	}
	if !changed {
		// Another instance got there first.
		return errSuspicious
	}

	ticket := &domain.OpsTicket{
		ID:        uuid.NewString(),
		LineID:    ln.ID,
		Reason:    reason,
		Status:    domain.TicketOpen,
		CreatedAt: time.Now(),
	}
	if err := e.tickets.InsertTx(tx, ticket); err != nil {
		return fmt.Errorf("ticket for line %s: %w", ln.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[reconciliation] line %s suspicious: %s", ln.ID, reason)
	return errSuspicious
}
