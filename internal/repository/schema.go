package repository

// Schema is the full DDL for the credit ledger. Applied by the seed binary
// and the test harness; idempotent so either can run against an existing
// database.
const Schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS asset_types (
		id UUID PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		description TEXT
	);
	CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		asset_type_id UUID NOT NULL REFERENCES asset_types(id),
		balance DECIMAL(30, 6) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (account_id, asset_type_id)
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY,
		sender_wallet_id UUID NOT NULL REFERENCES wallets(id),
		receiver_wallet_id UUID NOT NULL REFERENCES wallets(id),
		amount DECIMAL(30, 6) NOT NULL CHECK (amount > 0),
		kind VARCHAR(16) NOT NULL CHECK (kind IN ('DEPOSIT', 'WITHDRAWAL', 'TRANSFER')),
		status VARCHAR(16) NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED', 'REVERSED')),
		description TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_sender ON ledger_entries(sender_wallet_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_receiver ON ledger_entries(receiver_wallet_id);
`
