package ingestion

import (
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/molam/treasury/internal/domain"
	"github.com/molam/treasury/internal/repository"
)

// IngestResult is returned from a successful ingestion.
type IngestResult struct {
	BatchID           string `json:"batch_id"`
	LinesIngested     int    `json:"lines_ingested"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
}

// Service appends bank statement lines to the unmatched set. The statement
// producer is external; this is its delivery boundary. Matching itself is
// the reconciliation engine's job and runs on its own schedule.
type Service struct {
	statements *repository.StatementRepo
}

func NewService(statements *repository.StatementRepo) *Service {
	return &Service{statements: statements}
}

// IngestFile parses a statement file and stores its lines. Redelivered
// files are detected by content hash and skipped wholesale.
func (s *Service) IngestFile(data []byte, source string) (*IngestResult, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.statements.BatchExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		return &IngestResult{BatchID: "already-ingested"}, nil
	}

	lines, err := ParseStatementCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	batch := &domain.StatementBatch{
		ID:         uuid.NewString(),
		Source:     source,
		FileHash:   hash,
		LineCount:  len(lines),
		IngestedAt: time.Now(),
	}
	if err := s.statements.InsertBatch(batch); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	inserted, err := s.IngestLines(lines)
	if err != nil {
		return nil, err
	}

	log.Printf("[ingestion] batch %s from %s: %d lines (%d new)",
		batch.ID, source, len(lines), inserted)

	return &IngestResult{
		BatchID:           batch.ID,
		LinesIngested:     inserted,
		DuplicatesSkipped: len(lines) - inserted,
	}, nil
}

// IngestLines stores already-parsed lines, skipping references that are
// present from an earlier delivery.
func (s *Service) IngestLines(lines []domain.BankStatementLine) (int, error) {
	for i := range lines {
		ln := &lines[i]
		if ln.ID == "" {
			ln.ID = uuid.NewString()
		}
		if ln.Status == "" {
			ln.Status = domain.LineUnmatched
		}
		if ln.IngestedAt.IsZero() {
			ln.IngestedAt = time.Now()
		}
	}

	inserted, err := s.statements.InsertLines(lines)
	if err != nil {
		return 0, fmt.Errorf("insert lines: %w", err)
	}
	return inserted, nil
}
