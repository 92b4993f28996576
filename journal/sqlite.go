package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun stores the run and its planned orders in one transaction.
func (j *SQLite) RecordRun(r RunRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs
		(run_id, account, mode, created, starting_cash, equity, total_sells, total_buys, residual, feasible, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Account, r.Mode, r.Created.UTC(), r.StartingCash, r.Equity,
		r.TotalSells, r.TotalBuys, r.Residual, r.Feasible, r.Partial,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}

	for _, o := range r.Orders {
		status := o.Status
		if status == "" {
			status = StatusPlanned
		}
		_, err = tx.Exec(`
			INSERT INTO orders
			(run_id, seq, symbol, exchange, side, quantity, price, value, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, o.Seq, o.Symbol, o.Exchange, o.Side, o.Quantity, o.Price, o.Value, status,
		)
		if err != nil {
			return fmt.Errorf("record run %s order %d: %w", r.RunID, o.Seq, err)
		}
	}

	return tx.Commit()
}

// RecordSubmission stores the broker's answer and updates the order status.
func (j *SQLite) RecordSubmission(s SubmissionRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO submissions
		(run_id, seq, symbol, side, order_id, status, message, error, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Seq, s.Symbol, s.Side, s.OrderID, s.Status, s.Message, s.Error, s.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record submission %s/%d: %w", s.RunID, s.Seq, err)
	}

	status := s.Status
	if s.Error != "" {
		status = "error"
	}
	if _, err := tx.Exec(`UPDATE orders SET status = ? WHERE run_id = ? AND seq = ?`,
		status, s.RunID, s.Seq); err != nil {
		return err
	}

	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
