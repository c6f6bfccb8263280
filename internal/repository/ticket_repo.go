package repository

import (
	"database/sql"
	"time"

	"github.com/molam/treasury/internal/domain"
)

type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// InsertTx writes the ticket inside the escalation transaction so it
// commits or rolls back with the line's suspicious transition.
func (r *TicketRepo) InsertTx(tx *sql.Tx, t *domain.OpsTicket) error {
	_, err := tx.Exec(
		`INSERT INTO ops_tickets (id, line_id, reason, status, created_at)
		VALUES (?,?,?,?,?)`,
		t.ID, t.LineID, t.Reason, string(t.Status),
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *TicketRepo) ListOpen() ([]domain.OpsTicket, error) {
	rows, err := r.db.Query(
		"SELECT * FROM ops_tickets WHERE status = 'open' ORDER BY created_at",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.OpsTicket
	for rows.Next() {
		var t domain.OpsTicket
		var status, createdStr string
		if err := rows.Scan(&t.ID, &t.LineID, &t.Reason, &status, &createdStr); err != nil {
			return nil, err
		}
		t.Status = domain.TicketStatus(status)
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *TicketRepo) CountByLineID(lineID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM ops_tickets WHERE line_id = ?", lineID,
	).Scan(&count)
	return count, err
}
