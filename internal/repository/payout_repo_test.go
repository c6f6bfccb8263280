package repository

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "treasury.db"))
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testDB(t *testing.T) *PayoutRepo {
	t.Helper()
	return NewPayoutRepo(openTestDB(t))
}

func newPayout(externalID string, method domain.PayoutMethod, requestedAt time.Time) *domain.Payout {
	return &domain.Payout{
		ID:             uuid.NewString(),
		ExternalID:     externalID,
		OriginModule:   "marketplace",
		OriginEntityID: "merchant-1",
		Currency:       "USD",
		Amount:         decimal.RequireFromString("100"),
		Method:         method,
		DestinationID:  "dest-1",
		Status:         domain.PayoutPending,
		RequestedAt:    requestedAt,
	}
}

func TestInsertDedupesOnExternalID(t *testing.T) {
	repo := testDB(t)
	now := time.Now().UTC()

	first := newPayout("ext-dup", domain.MethodBatch, now)
	created, err := repo.Insert(first)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created {
		t.Fatal("first insert not created")
	}

	second := newPayout("ext-dup", domain.MethodBatch, now)
	created, err = repo.Insert(second)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Error("duplicate external_id created a second payout")
	}

	got, err := repo.GetByExternalID("ext-dup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("stored payout id = %s, want %s", got.ID, first.ID)
	}
}

func TestSelectPendingBatchOrdering(t *testing.T) {
	repo := testDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	// Insert out of order: the batch payout is the oldest, the instant one
	// the newest. Priority still beats age across tiers.
	inserts := []struct {
		ext    string
		method domain.PayoutMethod
		offset time.Duration
	}{
		{"ext-batch", domain.MethodBatch, 0},
		{"ext-priority", domain.MethodPriority, 10 * time.Minute},
		{"ext-instant", domain.MethodInstant, 20 * time.Minute},
		{"ext-instant-2", domain.MethodInstant, 25 * time.Minute},
	}
	for _, in := range inserts {
		if _, err := repo.Insert(newPayout(in.ext, in.method, base.Add(in.offset))); err != nil {
			t.Fatalf("insert %s: %v", in.ext, err)
		}
	}

	batch, err := repo.SelectPendingBatch(10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []string{"ext-instant", "ext-instant-2", "ext-priority", "ext-batch"}
	if len(batch) != len(want) {
		t.Fatalf("batch size = %d, want %d", len(batch), len(want))
	}
	for i, ext := range want {
		if batch[i].ExternalID != ext {
			t.Errorf("batch[%d] = %s, want %s", i, batch[i].ExternalID, ext)
		}
	}
	for i := 1; i < len(batch); i++ {
		if batch[i-1].Method.Priority() > batch[i].Method.Priority() {
			t.Errorf("batch[%d] method %s sorted after %s", i, batch[i].Method, batch[i-1].Method)
		}
	}
}

func TestClaimProcessingIsExclusive(t *testing.T) {
	repo := testDB(t)
	p := newPayout("ext-claim", domain.MethodInstant, time.Now().UTC())
	if _, err := repo.Insert(p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	claimed, err := repo.ClaimProcessing(p.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim failed")
	}

	claimed, err = repo.ClaimProcessing(p.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Error("second claim succeeded, want exclusive")
	}
}

func TestReclaimStaleReturnsOrphansToPending(t *testing.T) {
	db := openTestDB(t)
	repo := NewPayoutRepo(db)

	orphan := newPayout("ext-orphan", domain.MethodInstant, time.Now().UTC())
	live := newPayout("ext-live", domain.MethodInstant, time.Now().UTC())
	for _, p := range []*domain.Payout{orphan, live} {
		if _, err := repo.Insert(p); err != nil {
			t.Fatalf("insert %s: %v", p.ExternalID, err)
		}
		if claimed, err := repo.ClaimProcessing(p.ID); err != nil || !claimed {
			t.Fatalf("claim %s: claimed=%v err=%v", p.ExternalID, claimed, err)
		}
	}

	stale := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	if _, err := db.Exec("UPDATE payouts SET claimed_at = ? WHERE id = ?", stale, orphan.ID); err != nil {
		t.Fatalf("backdate claim: %v", err)
	}

	n, err := repo.ReclaimStale(time.Now().Add(-10 * time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed = %d, want 1", n)
	}

	gotOrphan, _ := repo.GetByID(orphan.ID)
	if gotOrphan.Status != domain.PayoutPending {
		t.Errorf("orphan status = %s, want pending", gotOrphan.Status)
	}
	if gotOrphan.ClaimedAt != nil {
		t.Error("orphan claimed_at not cleared")
	}
	gotLive, _ := repo.GetByID(live.ID)
	if gotLive.Status != domain.PayoutProcessing {
		t.Errorf("live status = %s, want processing", gotLive.Status)
	}
}

func TestMarkFailedRequiresProcessing(t *testing.T) {
	repo := testDB(t)
	p := newPayout("ext-fail", domain.MethodInstant, time.Now().UTC())
	if _, err := repo.Insert(p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Still pending, so the transition must be rejected.
	if err := repo.MarkFailed(p.ID, "boom", time.Now()); err == nil {
		t.Error("mark failed from pending succeeded, want error")
	}

	if _, err := repo.ClaimProcessing(p.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkFailed(p.ID, "boom", time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, _ := repo.GetByID(p.ID)
	if got.Status != domain.PayoutFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.FailureReason != "boom" {
		t.Errorf("failure_reason = %q, want boom", got.FailureReason)
	}
	if got.ProcessedAt == nil {
		t.Error("processed_at not set")
	}
}

func TestFuzzyCandidatesFiltersStatusCurrencyDate(t *testing.T) {
	repo := testDB(t)
	day := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	sent := newPayout("ext-sent", domain.MethodInstant, day)
	pending := newPayout("ext-pending", domain.MethodInstant, day)
	eur := newPayout("ext-eur", domain.MethodInstant, day)
	eur.Currency = "EUR"
	otherDay := newPayout("ext-old", domain.MethodInstant, day.AddDate(0, 0, -2))

	for _, p := range []*domain.Payout{sent, pending, eur, otherDay} {
		if _, err := repo.Insert(p); err != nil {
			t.Fatalf("insert %s: %v", p.ExternalID, err)
		}
	}
	for _, p := range []*domain.Payout{sent, eur, otherDay} {
		if _, err := repo.ClaimProcessing(p.ID); err != nil {
			t.Fatalf("claim %s: %v", p.ExternalID, err)
		}
	}

	got, err := repo.FuzzyCandidates("USD", day)
	if err != nil {
		t.Fatalf("fuzzy: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "ext-sent" {
		t.Fatalf("candidates = %d, want exactly ext-sent", len(got))
	}
}

func TestListFilterAndPagination(t *testing.T) {
	repo := testDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		p := newPayout(uuid.NewString(), domain.MethodBatch, base.Add(time.Duration(i)*time.Minute))
		if _, err := repo.Insert(p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	payouts, total, err := repo.List(PayoutFilter{Status: "pending", Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(payouts) != 2 {
		t.Errorf("page size = %d, want 2", len(payouts))
	}

	_, total, err = repo.List(PayoutFilter{Status: "failed"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 0 {
		t.Errorf("failed total = %d, want 0", total)
	}
}
