package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	runsHeader   = []string{"run_id", "account", "mode", "created", "starting_cash", "equity", "total_sells", "total_buys", "residual", "feasible", "partial"}
	ordersHeader = []string{"time", "run_id", "seq", "symbol", "exchange", "side", "quantity", "price", "value", "order_id", "status", "message", "error"}
)

// CSV appends runs and order events to two CSV files. Planned orders and
// broker answers share the orders file and are told apart by status.
type CSV struct {
	mu     sync.Mutex
	runs   *csv.Writer
	orders *csv.Writer
	rf, of *os.File
}

func NewCSV(runsPath, ordersPath string) (*CSV, error) {
	rf, rw, err := openCSV(runsPath, runsHeader)
	if err != nil {
		return nil, err
	}
	of, ow, err := openCSV(ordersPath, ordersHeader)
	if err != nil {
		rf.Close()
		return nil, err
	}
	return &CSV{runs: rw, orders: ow, rf: rf, of: of}, nil
}

// openCSV opens path for appending and writes header if the file is new.
func openCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSV) RecordRun(r RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.runs.Write([]string{
		r.RunID,
		r.Account,
		r.Mode,
		r.Created.UTC().Format(time.RFC3339),
		r.StartingCash.String(),
		r.Equity.String(),
		r.TotalSells.String(),
		r.TotalBuys.String(),
		r.Residual.String(),
		strconv.FormatBool(r.Feasible),
		strconv.FormatBool(r.Partial),
	})
	if err != nil {
		return err
	}
	j.runs.Flush()
	if err := j.runs.Error(); err != nil {
		return err
	}

	for _, o := range r.Orders {
		status := o.Status
		if status == "" {
			status = StatusPlanned
		}
		if err := j.orders.Write([]string{
			r.Created.UTC().Format(time.RFC3339),
			r.RunID,
			strconv.Itoa(o.Seq),
			o.Symbol,
			o.Exchange,
			o.Side,
			o.Quantity.String(),
			o.Price.String(),
			o.Value.String(),
			"", status, "", "",
		}); err != nil {
			return fmt.Errorf("run %s order %d: %w", r.RunID, o.Seq, err)
		}
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSV) RecordSubmission(s SubmissionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.orders.Write([]string{
		s.Time.UTC().Format(time.RFC3339),
		s.RunID,
		strconv.Itoa(s.Seq),
		s.Symbol,
		"",
		s.Side,
		"", "", "",
		s.OrderID,
		s.Status,
		s.Message,
		s.Error,
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.runs.Flush()
	j.orders.Flush()
	if err := j.runs.Error(); err != nil {
		return err
	}
	if err := j.orders.Error(); err != nil {
		return err
	}
	if err := j.rf.Close(); err != nil {
		return err
	}
	return j.of.Close()
}
