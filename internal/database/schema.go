package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schema is applied idempotently at startup. ledger_entries carries the
// money audit trail; lead_unlocks enforces at most one unlock per
// (lead, landlord) pair at the storage level.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS landlords (
		id SERIAL PRIMARY KEY,
		role TEXT NOT NULL DEFAULT 'landlord',
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		name TEXT NOT NULL,
		wechat_id TEXT,
		balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
		membership TEXT NOT NULL DEFAULT 'free',
		membership_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id SERIAL PRIMARY KEY,
		landlord_id INTEGER NOT NULL REFERENCES landlords(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		price NUMERIC(10,2) NOT NULL,
		location TEXT NOT NULL,
		address TEXT,
		images TEXT[] NOT NULL DEFAULT '{}',
		tags TEXT[] NOT NULL DEFAULT '{}',
		review_status TEXT NOT NULL DEFAULT 'pending',
		review_note TEXT,
		reviewed_at TIMESTAMPTZ,
		reviewed_by INTEGER REFERENCES landlords(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_promoted BOOLEAN NOT NULL DEFAULT FALSE,
		promoted_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id SERIAL PRIMARY KEY,
		listing_id INTEGER REFERENCES listings(id) ON DELETE SET NULL,
		requirement TEXT NOT NULL,
		budget TEXT,
		move_in_date TIMESTAMPTZ,
		wechat_id TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		review_status TEXT NOT NULL DEFAULT 'pending',
		review_note TEXT,
		reviewed_at TIMESTAMPTZ,
		reviewed_by INTEGER REFERENCES landlords(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS lead_unlocks (
		lead_id INTEGER NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		landlord_id INTEGER NOT NULL REFERENCES landlords(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (lead_id, landlord_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		landlord_id INTEGER NOT NULL REFERENCES landlords(id) ON DELETE CASCADE,
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		kind TEXT NOT NULL CHECK (kind IN ('deposit', 'unlock_lead', 'promote_listing', 'membership')),
		status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
		target_id INTEGER,
		external_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_landlord_created ON ledger_entries (landlord_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_pending_deposits ON ledger_entries (landlord_id, created_at DESC)
		WHERE kind = 'deposit' AND status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_external ON ledger_entries (external_id)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_public ON listings (is_promoted DESC, created_at DESC)
		WHERE is_active = TRUE AND review_status = 'approved'`,
	`CREATE INDEX IF NOT EXISTS idx_leads_review ON leads (review_status, created_at)`,
}

// EnsureSchema creates the marketplace tables and indexes if absent.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}
	log.Println("Database schema ensured")
	return nil
}
