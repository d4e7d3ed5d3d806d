package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// LedgerStore implements ledger.Store on the attendance table.
// UNIQUE(name, mark_date) keeps the one-mark-per-day rule even across processes.
type LedgerStore struct {
	pool      *Pool
	sessionID uuid.UUID
}

// NewLedgerStore creates a store tagging new rows with sessionID.
func NewLedgerStore(pool *Pool, sessionID uuid.UUID) *LedgerStore {
	return &LedgerStore{pool: pool, sessionID: sessionID}
}

// Load returns all records in insertion order.
func (s *LedgerStore) Load(ctx context.Context) ([]ledger.Record, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT name, mark_date, mark_time FROM attendance ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time); err != nil {
			return nil, fmt.Errorf("scan attendance row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance rows: %w", err)
	}
	return records, nil
}

// Append inserts rec. A row that already exists for the same name and day is
// left as is and ledger.ErrAlreadyRecorded is returned.
func (s *LedgerStore) Append(ctx context.Context, rec ledger.Record) error {
	res, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (name, mark_date, mark_time, session_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, mark_date) DO NOTHING
	`, rec.Name, rec.Date, rec.Time, s.sessionID)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s on %s: %w", rec.Name, rec.Date, ledger.ErrAlreadyRecorded)
	}
	return nil
}
