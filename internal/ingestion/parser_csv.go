package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/molam/treasury/internal/domain"
)

// ParseStatementCSV parses the bank statement export format.
//
// Expected header:
//
//	reference,amount,currency,statement_date
func ParseStatementCSV(data []byte) ([]domain.BankStatementLine, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 4 {
		return nil, fmt.Errorf("expected 4 columns, got %d", len(header))
	}

	now := time.Now()
	var lines []domain.BankStatementLine
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(row) < 4 {
			continue
		}

		reference := strings.TrimSpace(row[0])
		if reference == "" {
			return nil, fmt.Errorf("line %d: empty reference", lineNum)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}

		currency := strings.ToUpper(strings.TrimSpace(row[2]))
		if currency == "" {
			return nil, fmt.Errorf("line %d: empty currency", lineNum)
		}

		dateStr := strings.TrimSpace(row[3])
		statementDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			statementDate, err = time.Parse(time.RFC3339, dateStr)
			if err != nil {
				return nil, fmt.Errorf("line %d date: %w", lineNum, err)
			}
		}

		lines = append(lines, domain.BankStatementLine{
			ID:            uuid.NewString(),
			Reference:     reference,
			Amount:        amount,
			Currency:      currency,
			StatementDate: statementDate,
			Status:        domain.LineUnmatched,
			IngestedAt:    now,
		})
	}

	return lines, nil
}
