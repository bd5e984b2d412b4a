package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	ticket TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	price REAL NOT NULL,
	stop REAL NOT NULL,
	target REAL NOT NULL,
	confidence REAL NOT NULL,
	rationale TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_time ON orders(time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	profit REAL NOT NULL,
	open_positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS notes (
	time DATETIME NOT NULL,
	message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS day_baseline (
	day TEXT PRIMARY KEY,
	equity REAL NOT NULL
);
`
