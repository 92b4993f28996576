package journal

// Money and quantities are stored as TEXT so decimals round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	account TEXT NOT NULL,
	mode TEXT NOT NULL,
	created DATETIME NOT NULL,
	starting_cash TEXT NOT NULL,
	equity TEXT NOT NULL,
	total_sells TEXT NOT NULL,
	total_buys TEXT NOT NULL,
	residual TEXT NOT NULL,
	feasible INTEGER NOT NULL,
	partial INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	exchange TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	value TEXT NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS submissions (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_id TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	error TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
CREATE INDEX IF NOT EXISTS idx_submissions_run ON submissions(run_id);
`
