package journal

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Times are stored in UTC so range queries compare like with like.

// RecordTrade upserts by position id; the bridge may see a position again
// after a restart.
func (j *SQLite) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO trades
		(position_id, symbol, side, volume, entry_price, exit_price, open_time, close_time, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PositionID, t.Symbol, t.Side, t.Volume, t.EntryPrice,
		t.ExitPrice, nullTime(t.OpenTime), t.CloseTime.UTC(), t.Profit,
	)
	return err
}

func (j *SQLite) RecordReport(r ReportRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
		INSERT INTO reports
		(signal_id, symbol, action, ticket, volume, price, stop_loss, take_profit, status, message, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SignalID, r.Symbol, r.Action, int64(r.Ticket), r.Volume, r.Price,
		r.StopLoss, r.TakeProfit, r.Status, r.Message, r.Time.UTC(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
