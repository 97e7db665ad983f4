// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	position_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME,
	close_time DATETIME NOT NULL,
	profit REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	ticket INTEGER NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
CREATE INDEX IF NOT EXISTS idx_reports_signal ON reports(signal_id);
CREATE INDEX IF NOT EXISTS idx_reports_time ON reports(time);
`
