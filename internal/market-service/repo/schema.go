package repo

// Schema cria as tabelas do market-service (idempotente)
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             UUID PRIMARY KEY,
		username       TEXT NOT NULL UNIQUE,
		email          TEXT NOT NULL UNIQUE,
		points_balance NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
		role           TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','admin')),
		version        BIGINT NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS markets (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','resolved')),
		resolution  TEXT CHECK (resolution IN ('YES','NO')),
		created_by  UUID NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ,
		CHECK ((status = 'resolved') = (resolution IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS bets (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id),
		market_id  UUID NOT NULL REFERENCES markets(id),
		side       TEXT NOT NULL CHECK (side IN ('YES','NO')),
		amount     NUMERIC(20,8) NOT NULL CHECK (amount > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, market_id, side)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bets_market_side ON bets(market_id, side)`,
	`CREATE TABLE IF NOT EXISTS payouts (
		id         UUID PRIMARY KEY,
		market_id  UUID NOT NULL REFERENCES markets(id),
		bet_id     UUID NOT NULL UNIQUE REFERENCES bets(id),
		user_id    UUID NOT NULL REFERENCES users(id),
		stake      NUMERIC(20,8) NOT NULL,
		share      NUMERIC(20,8) NOT NULL,
		amount     NUMERIC(20,8) NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','paid')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		paid_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payouts_market_status ON payouts(market_id, status)`,
	`CREATE TABLE IF NOT EXISTS points_ledger (
		id            UUID PRIMARY KEY,
		user_id       UUID NOT NULL REFERENCES users(id),
		delta         NUMERIC(20,8) NOT NULL,
		balance_after NUMERIC(20,8) NOT NULL,
		reason        TEXT NOT NULL,
		reference     TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_points_ledger_user ON points_ledger(user_id, created_at)`,
}
