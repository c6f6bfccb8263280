package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/molam/treasury/internal/connector"
	"github.com/molam/treasury/internal/domain"
	"github.com/molam/treasury/internal/events"
	"github.com/molam/treasury/internal/ledger"
	"github.com/molam/treasury/internal/repository"
)

// BatchResult summarises one settlement tick.
type BatchResult struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Config tunes the worker. Zero values fall back to the defaults below.
// ReclaimAfter is the processing lease: rows claimed longer ago than this
// are assumed orphaned by a dead instance and returned to pending.
type Config struct {
	BatchSize        int
	ConnectorTimeout time.Duration
	ReclaimAfter     time.Duration
}

const (
	defaultBatchSize        = 50
	defaultConnectorTimeout = 30 * time.Second
	defaultReclaimAfter     = 10 * time.Minute
)

// Worker drives pending payouts through send, record and compensate. Each
// payout is an isolated unit of work: a connector failure or rollback on
// one never blocks the rest of the batch.
type Worker struct {
	db           *sql.DB
	payouts      *repository.PayoutRepo
	banks        *repository.BankRepo
	instructions *repository.InstructionRepo
	slas         *repository.SLARepo
	balances     *repository.BalanceRepo
	guard        *repository.IdempotencyRepo
	ledger       *ledger.Facade
	connectors   *connector.Registry
	publisher    events.Publisher
	cfg          Config
}

func NewWorker(
	db *sql.DB,
	payouts *repository.PayoutRepo,
	banks *repository.BankRepo,
	instructions *repository.InstructionRepo,
	slas *repository.SLARepo,
	balances *repository.BalanceRepo,
	guard *repository.IdempotencyRepo,
	ledgerFacade *ledger.Facade,
	connectors *connector.Registry,
	publisher events.Publisher,
	cfg Config,
) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ConnectorTimeout <= 0 {
		cfg.ConnectorTimeout = defaultConnectorTimeout
	}
	if cfg.ReclaimAfter <= 0 {
		cfg.ReclaimAfter = defaultReclaimAfter
	}
	return &Worker{
		db:           db,
		payouts:      payouts,
		banks:        banks,
		instructions: instructions,
		slas:         slas,
		balances:     balances,
		guard:        guard,
		ledger:       ledgerFacade,
		connectors:   connectors,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Run polls on the given interval until the context is cancelled. A batch
// already started runs to completion.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[settlement] worker started, interval=%s batch=%d", interval, w.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[settlement] worker stopped")
			return
		case <-ticker.C:
			res, err := w.ProcessBatch(ctx)
			if err != nil {
				log.Printf("[settlement] batch error: %v", err)
				continue
			}
			if res.Selected > 0 {
				log.Printf("[settlement] batch done: selected=%d sent=%d failed=%d skipped=%d",
					res.Selected, res.Sent, res.Failed, res.Skipped)
			}
		}
	}
}

// ProcessBatch recovers orphaned processing rows, then selects up to the
// configured batch of pending payouts in priority-then-FIFO order and
// processes each in turn. On context cancellation the remaining unclaimed
// items are left pending for the next start; they are never failed.
func (w *Worker) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	reclaimed, err := w.payouts.ReclaimStale(time.Now().Add(-w.cfg.ReclaimAfter))
	if err != nil {
		return nil, fmt.Errorf("reclaim stale: %w", err)
	}
	if reclaimed > 0 {
		log.Printf("[settlement] reclaimed %d stale processing payouts", reclaimed)
	}

	batch, err := w.payouts.SelectPendingBatch(w.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}

	res := &BatchResult{Selected: len(batch)}
	for i := range batch {
		if ctx.Err() != nil {
			res.Skipped += len(batch) - i
			break
		}
		p := &batch[i]
		switch w.processOne(p) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		case outcomeSkipped:
			res.Skipped++
		}
	}
	return res, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (w *Worker) processOne(p *domain.Payout) outcome {
	claimed, err := w.payouts.ClaimProcessing(p.ID)
	if err != nil {
		log.Printf("[settlement] claim %s: %v", p.ID, err)
		return outcomeSkipped
	}
	if !claimed {
		// Another instance owns this payout.
		return outcomeSkipped
	}

	// Funds are provisionally committed as soon as the payout enters
	// processing; reconciliation finalizes the hold later.
	if _, err := w.ledger.CreateHold(p.OriginModule, p.OriginEntityID, p.Amount, p.Currency, domain.HoldRef(p.ID)); err != nil {
		w.fail(p, fmt.Sprintf("create hold: %v", err))
		return outcomeFailed
	}

	account, profile, err := w.banks.ResolveDestination(p.DestinationID)
	if err != nil {
		w.fail(p, fmt.Sprintf("resolve destination: %v", err))
		return outcomeFailed
	}

	conn, rail, err := w.connectors.Resolve(profile)
	if err != nil {
		w.fail(p, err.Error())
		return outcomeFailed
	}

	// The send carries its own deadline, detached from the run context: a
	// claimed payout finishes its attempt even during shutdown, so a deploy
	// never turns into a batch of terminal failures.
	sendCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ConnectorTimeout)
	bankRef, err := conn.SendPayment(sendCtx, profile, connector.PaymentRequest{
		PayoutID:    p.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Destination: account.AccountNumber,
		Rail:        rail,
	})
	cancel()
	if err != nil {
		// Timeouts and rejections take the same path.
		w.fail(p, fmt.Sprintf("connector: %v", err))
		return outcomeFailed
	}

	now := time.Now()
	if err := w.recordSent(p, profile, rail, bankRef, now); err != nil {
		w.fail(p, fmt.Sprintf("record send: %v", err))
		return outcomeFailed
	}

	w.publish(p.ID, events.EventPayoutSent, events.PayoutSent{
		PayoutID:   p.ID,
		ExternalID: p.ExternalID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		BankRef:    bankRef,
		SentAt:     now,
	})

	log.Printf("[settlement] sent payout %s (%s %s) via %s ref=%s",
		p.ID, p.Amount, p.Currency, profile.Name, bankRef)
	return outcomeSent
}

// recordSent writes the instruction, the status transition and the SLA
// sample in one transaction so a crash leaves no partial send on record.
func (w *Worker) recordSent(p *domain.Payout, profile *domain.BankProfile, rail domain.Rail, bankRef string, now time.Time) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	instruction := &domain.SettlementInstruction{
		ID:            uuid.NewString(),
		PayoutID:      p.ID,
		BankProfileID: profile.ID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Rail:          rail,
		Status:        domain.InstructionSent,
		BankRef:       bankRef,
		CreatedAt:     now,
	}
	if err := w.instructions.InsertTx(tx, instruction); err != nil {
		return err
	}

	if err := w.payouts.MarkSentTx(tx, p.ID, now); err != nil {
		return err
	}

	sla := &domain.SettlementSLA{
		ID:            uuid.NewString(),
		BankProfileID: profile.ID,
		Rail:          rail,
		PayoutID:      p.ID,
		ExpectedDelay: time.Duration(profile.SLATargetSeconds) * time.Second,
		ActualDelay:   now.Sub(p.RequestedAt),
		RecordedAt:    now,
	}
	if err := w.slas.InsertTx(tx, sla); err != nil {
		return err
	}

	return tx.Commit()
}

// fail moves the payout to its terminal failed state and compensates the
// originating balance exactly once per payout, durably guarded so repeated
// failures of the same payout never double-refund.
func (w *Worker) fail(p *domain.Payout, reason string) {
	now := time.Now()
	if err := w.payouts.MarkFailed(p.ID, reason, now); err != nil {
		log.Printf("[settlement] mark failed %s: %v", p.ID, err)
	}

	claimed, err := w.guard.Claim("compensate:"+p.ExternalID, now)
	if err != nil {
		log.Printf("[settlement] compensation claim %s: %v", p.ID, err)
	} else if claimed {
		if err := w.balances.Credit(p.OriginEntityID, p.Currency, p.Amount, now); err != nil {
			log.Printf("[settlement] CRITICAL: compensation credit failed for %s (%s %s): %v",
				p.ID, p.Amount, p.Currency, err)
		} else {
			log.Printf("[settlement] compensated %s with %s %s", p.OriginEntityID, p.Amount, p.Currency)
		}
	}

	w.publish(p.ID, events.EventPayoutFailed, events.PayoutFailed{
		PayoutID:   p.ID,
		ExternalID: p.ExternalID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Reason:     reason,
		FailedAt:   now,
	})

	log.Printf("[settlement] payout %s failed: %s", p.ID, reason)
}

// publish is fire-and-forget: errors are logged and never propagate into
// the payout's outcome.
func (w *Worker) publish(entityID, eventType string, payload any) {
	if err := w.publisher.Publish(entityID, eventType, payload); err != nil {
		log.Printf("[settlement] publish %s for %s: %v", eventType, entityID, err)
	}
}
