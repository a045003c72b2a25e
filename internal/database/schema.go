package database

// schemaSQL creates the tables shared across modules. Each has a timestamp
// column; all but token_metadata (keyed by token) have a surrogate integer
// primary key.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS pool_info (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	pool_id              INTEGER NOT NULL,
	kind                 TEXT NOT NULL,
	tokens_json          TEXT NOT NULL,
	reserves_json        TEXT NOT NULL,
	total_fee            INTEGER NOT NULL,
	shares_total_supply  TEXT NOT NULL,
	amp                  INTEGER NOT NULL,
	captured_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pool_info_pool_id ON pool_info (pool_id, captured_at DESC);

CREATE TABLE IF NOT EXISTS token_rates (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	base            TEXT NOT NULL,
	quote           TEXT NOT NULL,
	raw_rate        TEXT NOT NULL,
	decimals        INTEGER NOT NULL,
	rate_calc_near  TEXT NOT NULL,
	swap_path_json  TEXT NOT NULL,
	recorded_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_token_rates_base_time ON token_rates (base, quote, recorded_at DESC);

CREATE TABLE IF NOT EXISTS prediction_records (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_period_id   TEXT NOT NULL,
	token                  TEXT NOT NULL,
	quote_token            TEXT NOT NULL,
	predicted_price        TEXT NOT NULL,
	prediction_time        INTEGER NOT NULL,
	target_time            INTEGER NOT NULL,
	actual_price           TEXT,
	mape                   REAL,
	absolute_error         TEXT,
	evaluated_at           INTEGER,
	status                 TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_prediction_records_status ON prediction_records (status, target_time);
CREATE INDEX IF NOT EXISTS idx_prediction_records_token ON prediction_records (token, evaluated_at DESC);

CREATE TABLE IF NOT EXISTS evaluation_periods (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	period_uuid       TEXT NOT NULL UNIQUE,
	initial_value_near TEXT NOT NULL,
	started_at        INTEGER NOT NULL,
	is_latest         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trade_transactions (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	action_tag          TEXT NOT NULL,
	token                TEXT NOT NULL,
	amount              TEXT NOT NULL,
	price_near          TEXT NOT NULL,
	realized_pnl_near   TEXT,
	tx_hash             TEXT,
	recorded_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_transactions_time ON trade_transactions (recorded_at DESC);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	total_value_near   TEXT NOT NULL,
	holdings_json      TEXT NOT NULL,
	cash_balance       TEXT NOT NULL,
	realized_pnl_near  TEXT NOT NULL,
	recorded_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_portfolio_snapshots_time ON portfolio_snapshots (recorded_at DESC);

CREATE TABLE IF NOT EXISTS token_metadata (
	token       TEXT PRIMARY KEY,
	decimals    INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	name        TEXT NOT NULL,
	cached_at   INTEGER NOT NULL
);
`
