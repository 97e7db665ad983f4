// journal/journal.go
package journal

import "time"

// TradeRecord is a closed position as reported to the backend.
type TradeRecord struct {
	PositionID string
	Symbol     string
	Side       string
	Volume     float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time // zero when the entry fell outside the lookback window
	CloseTime  time.Time
	Profit     float64
}

// ReportRecord is the outcome of one signal, mirroring the trade report sent
// to the backend.
type ReportRecord struct {
	SignalID   int64
	Symbol     string
	Action     string
	Ticket     uint64
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Status     string
	Message    string
	Time       time.Time
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordReport(ReportRecord) error
	Close() error
}

// Open builds a journal by kind: "sqlite", "csv" or "none".
func Open(kind, dbPath, tradesFile, reportsFile string) (Journal, error) {
	switch kind {
	case "sqlite":
		return NewSQLite(dbPath)
	case "csv":
		return NewCSV(tradesFile, reportsFile)
	default:
		return Discard{}, nil
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error   { return nil }
func (Discard) RecordReport(ReportRecord) error { return nil }
func (Discard) Close() error                    { return nil }
