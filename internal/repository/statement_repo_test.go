package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
)

func testLine(reference string) domain.BankStatementLine {
	return domain.BankStatementLine{
		ID:            uuid.NewString(),
		Reference:     reference,
		Amount:        decimal.RequireFromString("100"),
		Currency:      "USD",
		StatementDate: time.Now().UTC(),
		Status:        domain.LineUnmatched,
		IngestedAt:    time.Now().UTC(),
	}
}

func TestInsertLinesSkipsDuplicateReferences(t *testing.T) {
	repo := NewStatementRepo(openTestDB(t))

	n, err := repo.InsertLines([]domain.BankStatementLine{testLine("BANK-1"), testLine("BANK-2")})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}

	// Re-ingesting a file overlaps on BANK-2; only the new line lands.
	n, err = repo.InsertLines([]domain.BankStatementLine{testLine("BANK-2"), testLine("BANK-3")})
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d on overlap, want 1", n)
	}

	unmatched, err := repo.GetUnmatchedPage(time.Time{}, "", 10)
	if err != nil {
		t.Fatalf("get unmatched: %v", err)
	}
	if len(unmatched) != 3 {
		t.Errorf("unmatched = %d, want 3", len(unmatched))
	}
}

func TestGetUnmatchedPageKeysetCursor(t *testing.T) {
	db := openTestDB(t)
	repo := NewStatementRepo(db)

	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	var lines []domain.BankStatementLine
	for i := 0; i < 3; i++ {
		ln := testLine("BANK-PAGE-" + string(rune('A'+i)))
		ln.IngestedAt = base.Add(time.Duration(i) * time.Minute)
		lines = append(lines, ln)
	}
	if _, err := repo.InsertLines(lines); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first, err := repo.GetUnmatchedPage(time.Time{}, "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first page = %d lines, want 2", len(first))
	}
	if !first[0].IngestedAt.Before(first[1].IngestedAt) {
		t.Errorf("page not ordered by ingested_at: %v then %v", first[0].IngestedAt, first[1].IngestedAt)
	}

	last := first[len(first)-1]
	second, err := repo.GetUnmatchedPage(last.IngestedAt, last.ID, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("second page = %d lines, want 1", len(second))
	}
	if second[0].ID == first[0].ID || second[0].ID == first[1].ID {
		t.Error("second page repeats a line from the first")
	}

	// A matched line drops out of the paged set entirely.
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.MarkMatchedTx(tx, second[0].ID, "payout-1"); err != nil {
		t.Fatalf("mark matched: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	remaining, err := repo.GetUnmatchedPage(time.Time{}, "", 10)
	if err != nil {
		t.Fatalf("after match: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("unmatched after match = %d, want 2", len(remaining))
	}
}

func TestMarkMatchedTxRequiresUnmatched(t *testing.T) {
	db := openTestDB(t)
	repo := NewStatementRepo(db)

	ln := testLine("BANK-10")
	if _, err := repo.InsertLines([]domain.BankStatementLine{ln}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.MarkMatchedTx(tx, ln.ID, "payout-1"); err != nil {
		t.Fatalf("mark matched: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Second transition must fail: the line is no longer unmatched.
	tx, err = db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := repo.MarkMatchedTx(tx, ln.ID, "payout-2"); err == nil {
		t.Error("re-match of a matched line succeeded, want error")
	}

	got, _ := repo.GetByID(ln.ID)
	if got.MatchedPayoutID != "payout-1" {
		t.Errorf("matched_payout_id = %s, want payout-1", got.MatchedPayoutID)
	}
}

func TestMarkSuspiciousOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewStatementRepo(db)

	ln := testLine("BANK-20")
	if _, err := repo.InsertLines([]domain.BankStatementLine{ln}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	markSuspicious := func() bool {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		changed, err := repo.MarkSuspiciousTx(tx, ln.ID)
		if err != nil {
			t.Fatalf("mark suspicious: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
		return changed
	}

	if !markSuspicious() {
		t.Fatal("first mark did not change the line")
	}
	if markSuspicious() {
		t.Error("second mark reported a change")
	}
}

func TestBatchHashDedup(t *testing.T) {
	repo := NewStatementRepo(openTestDB(t))

	exists, err := repo.BatchExistsByHash("abc123")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("hash reported before insert")
	}

	batch := &domain.StatementBatch{
		ID:         uuid.NewString(),
		Source:     "upload",
		FileHash:   "abc123",
		LineCount:  2,
		IngestedAt: time.Now().UTC(),
	}
	if err := repo.InsertBatch(batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	exists, err = repo.BatchExistsByHash("abc123")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("hash not found after insert")
	}
}
