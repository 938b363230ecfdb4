// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS lots (
	instrument TEXT NOT NULL,
	seq INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	units REAL NOT NULL,
	opened_at DATETIME NOT NULL,
	PRIMARY KEY (instrument, seq)
);

CREATE TABLE IF NOT EXISTS processed_fills (
	instrument TEXT NOT NULL,
	fill_id TEXT NOT NULL,
	PRIMARY KEY (instrument, fill_id)
);

CREATE TABLE IF NOT EXISTS realized_trades (
	trade_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	time DATETIME NOT NULL,
	avg_entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	units REAL NOT NULL,
	cost_basis REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	realized_pnl_pct REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	instrument TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	position_value REAL NOT NULL,
	total_equity REAL NOT NULL,
	invested_pct REAL NOT NULL,
	drawdown_pct REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_instrument_time ON realized_trades(instrument, time);
CREATE INDEX IF NOT EXISTS idx_equity_instrument_time ON equity(instrument, time);
`
