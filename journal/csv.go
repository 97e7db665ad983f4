// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	tradeHeader  = []string{"position_id", "symbol", "side", "volume", "entry_price", "exit_price", "open_time", "close_time", "profit"}
	reportHeader = []string{"signal_id", "symbol", "action", "ticket", "volume", "price", "stop_loss", "take_profit", "status", "message", "time"}
)

type CSVJournal struct {
	mu      sync.Mutex
	trades  *csv.Writer
	reports *csv.Writer
	tf, rf  *os.File
}

func NewCSV(tradesPath, reportsPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	rf, err := os.Create(reportsPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	rw := csv.NewWriter(rf)

	if err := tw.Write(tradeHeader); err != nil {
		return nil, err
	}
	if err := rw.Write(reportHeader); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	rw.Flush()
	if err := rw.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{trades: tw, reports: rw, tf: tf, rf: rf}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.trades.Write([]string{
		t.PositionID,
		t.Symbol,
		t.Side,
		f(t.Volume),
		f(t.EntryPrice),
		f(t.ExitPrice),
		ts(t.OpenTime),
		ts(t.CloseTime),
		f(t.Profit),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordReport(r ReportRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.reports.Write([]string{
		strconv.FormatInt(r.SignalID, 10),
		r.Symbol,
		r.Action,
		strconv.FormatUint(r.Ticket, 10),
		f(r.Volume),
		f(r.Price),
		f(r.StopLoss),
		f(r.TakeProfit),
		r.Status,
		r.Message,
		ts(r.Time),
	})
	if err != nil {
		return err
	}
	j.reports.Flush()
	return j.reports.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.reports.Flush()
	if err := j.reports.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.rf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
