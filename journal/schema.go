package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	side TEXT NOT NULL,
	contract TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	phase TEXT NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin_used REAL NOT NULL,
	free_margin REAL NOT NULL,
	floating_pl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS events (
	time DATETIME NOT NULL,
	kind TEXT NOT NULL,
	phase TEXT NOT NULL,
	next_phase TEXT NOT NULL,
	message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started DATETIME NOT NULL,
	ended DATETIME NOT NULL,
	start_phase TEXT NOT NULL,
	end_phase TEXT NOT NULL,
	fully_trained INTEGER NOT NULL,
	ticks INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	net_pl REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	advances INTEGER NOT NULL,
	failures INTEGER NOT NULL
);
`
