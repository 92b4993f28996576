package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

const runColumns = `run_id, account, mode, created, starting_cash, equity, total_sells, total_buys, residual, feasible, partial`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var r RunRecord
	err := s.Scan(
		&r.RunID,
		&r.Account,
		&r.Mode,
		&r.Created,
		&r.StartingCash,
		&r.Equity,
		&r.TotalSells,
		&r.TotalBuys,
		&r.Residual,
		&r.Feasible,
		&r.Partial,
	)
	return r, err
}

// GetRun returns one run with its orders and submissions.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
		}
		return RunRecord{}, err
	}
	if err := j.loadDetail(&r); err != nil {
		return RunRecord{}, err
	}
	return r, nil
}

// ListRunsBetween returns runs created within [start, end), oldest first.
func (j *SQLite) ListRunsBetween(start, end time.Time) ([]RunRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+runColumns+`
		FROM runs
		WHERE created >= ? AND created < ?
		ORDER BY created ASC, run_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := j.loadDetail(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Submissions returns the broker answers for a run in the order received.
func (j *SQLite) Submissions(runID string) ([]SubmissionRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, seq, symbol, side, order_id, status, message, error, time
		FROM submissions
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var s SubmissionRecord
		if err := rows.Scan(
			&s.RunID, &s.Seq, &s.Symbol, &s.Side, &s.OrderID,
			&s.Status, &s.Message, &s.Error, &s.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLite) loadDetail(r *RunRecord) error {
	rows, err := j.db.Query(`
		SELECT seq, symbol, exchange, side, quantity, price, value, status
		FROM orders
		WHERE run_id = ?
		ORDER BY seq ASC`, r.RunID)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.Orders = nil
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(
			&o.Seq, &o.Symbol, &o.Exchange, &o.Side,
			&o.Quantity, &o.Price, &o.Value, &o.Status,
		); err != nil {
			return err
		}
		r.Orders = append(r.Orders, o)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	r.Submissions, err = j.Submissions(r.RunID)
	return err
}
