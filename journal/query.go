package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `position_id, symbol, side, volume, entry_price, exit_price, open_time, close_time, profit`

func scanTrade(s interface{ Scan(...any) error }) (TradeRecord, error) {
	var (
		rec  TradeRecord
		open sql.NullTime
	)
	err := s.Scan(
		&rec.PositionID,
		&rec.Symbol,
		&rec.Side,
		&rec.Volume,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&open,
		&rec.CloseTime,
		&rec.Profit,
	)
	if open.Valid {
		rec.OpenTime = open.Time
	}
	return rec, err
}

// GetTrade returns a single closed trade by position id.
func (j *SQLite) GetTrade(positionID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE position_id = ?`, positionID)
	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", positionID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const reportColumns = `signal_id, symbol, action, ticket, volume, price, stop_loss, take_profit, status, message, time`

func scanReport(s interface{ Scan(...any) error }) (ReportRecord, error) {
	var (
		r      ReportRecord
		ticket int64
	)
	err := s.Scan(&r.SignalID, &r.Symbol, &r.Action, &ticket, &r.Volume, &r.Price,
		&r.StopLoss, &r.TakeProfit, &r.Status, &r.Message, &r.Time)
	r.Ticket = uint64(ticket)
	return r, err
}

// ReportsForSignal returns every report written for a signal id, oldest first.
func (j *SQLite) ReportsForSignal(signalID int64) ([]ReportRecord, error) {
	return j.queryReports(`SELECT `+reportColumns+` FROM reports WHERE signal_id = ? ORDER BY id ASC`, signalID)
}

// ListReportsBetween returns reports written within [start, end).
func (j *SQLite) ListReportsBetween(start, end time.Time) ([]ReportRecord, error) {
	return j.queryReports(`SELECT `+reportColumns+` FROM reports WHERE time >= ? AND time < ? ORDER BY time ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) queryReports(q string, args ...any) ([]ReportRecord, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats aggregates closed trades in [start, end).
type Stats struct {
	Trades       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64
	NetProfit    float64
	ProfitFactor float64
}

func (j *SQLite) StatsBetween(start, end time.Time) (Stats, error) {
	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(trades), nil
}

func Summarize(trades []TradeRecord) Stats {
	var s Stats
	for _, t := range trades {
		s.Trades++
		s.NetProfit += t.Profit
		switch {
		case t.Profit > 0:
			s.Wins++
			s.GrossProfit += t.Profit
		case t.Profit < 0:
			s.Losses++
			s.GrossLoss += -t.Profit
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
