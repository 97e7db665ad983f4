package state

const Schema = `
CREATE TABLE IF NOT EXISTS cursors (
	account TEXT PRIMARY KEY,
	last_signal_id INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger (
	account TEXT NOT NULL,
	seq INTEGER NOT NULL,
	key TEXT NOT NULL,
	PRIMARY KEY (account, seq)
);
`
