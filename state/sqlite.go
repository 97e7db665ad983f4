package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) LoadCursor(ctx context.Context, account string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_signal_id FROM cursors WHERE account = ?`, account).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (s *SQLite) SaveCursor(ctx context.Context, account string, cursor int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (account, last_signal_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			last_signal_id = MAX(last_signal_id, excluded.last_signal_id),
			updated_at = excluded.updated_at`,
		account, cursor, time.Now().UTC())
	return err
}

func (s *SQLite) LoadLedger(ctx context.Context, account string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM ledger WHERE account = ? ORDER BY seq ASC`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SaveLedger replaces the stored ledger in one transaction.
func (s *SQLite) SaveLedger(ctx context.Context, account string, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger WHERE account = ?`, account); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger (account, seq, key) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, k := range keys {
		if _, err := stmt.ExecContext(ctx, account, i, k); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
