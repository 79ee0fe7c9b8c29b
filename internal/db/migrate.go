// internal/db/migrate.go
package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Per-driver DDL. The two variants differ only in key/timestamp types; every
// query in the repository layer works against either.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		message_kind TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		template_name TEXT NOT NULL DEFAULT '',
		template_params TEXT NOT NULL DEFAULT '[]',
		media_url TEXT NOT NULL DEFAULT '',
		buttons TEXT NOT NULL DEFAULT '[]',
		audience_kind TEXT NOT NULL,
		audience_filter TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'draft',
		target_count INTEGER NOT NULL DEFAULT 0,
		sent_count INTEGER NOT NULL DEFAULT 0,
		delivered_count INTEGER NOT NULL DEFAULT 0,
		read_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		rate_per_minute INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		scheduled_at DATETIME,
		started_at DATETIME,
		completed_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_recipients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		message_id TEXT NOT NULL DEFAULT '',
		error_detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		claimed_at DATETIME,
		sent_at DATETIME,
		delivered_at DATETIME,
		read_at DATETIME,
		failed_at DATETIME,
		UNIQUE (campaign_id, phone)
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',
		segment TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT '',
		order_count INTEGER NOT NULL DEFAULT 0,
		total_spent REAL NOT NULL DEFAULT 0,
		opted_in INTEGER NOT NULL DEFAULT 0,
		last_seen_at DATETIME,
		last_order_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total REAL NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT 'cod',
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		payment_link TEXT NOT NULL DEFAULT '',
		payment_link_created_at DATETIME,
		payment_link_expires_at DATETIME,
		shipped_at DATETIME,
		delivered_at DATETIME,
		delivery_check_sent INTEGER NOT NULL DEFAULT 0,
		review_request_sent INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		total REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		reminder_count INTEGER NOT NULL DEFAULT 0,
		last_reminder_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		subject TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recipients_campaign_status ON campaign_recipients (campaign_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reminder_events_lookup ON reminder_events (event_type, subject, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		message_kind TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		template_name TEXT NOT NULL DEFAULT '',
		template_params TEXT NOT NULL DEFAULT '[]',
		media_url TEXT NOT NULL DEFAULT '',
		buttons TEXT NOT NULL DEFAULT '[]',
		audience_kind TEXT NOT NULL,
		audience_filter TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'draft',
		target_count INTEGER NOT NULL DEFAULT 0,
		sent_count INTEGER NOT NULL DEFAULT 0,
		delivered_count INTEGER NOT NULL DEFAULT 0,
		read_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		rate_per_minute INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		scheduled_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_recipients (
		id SERIAL PRIMARY KEY,
		campaign_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		message_id TEXT NOT NULL DEFAULT '',
		error_detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		claimed_at TIMESTAMPTZ,
		sent_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		read_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ,
		UNIQUE (campaign_id, phone)
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id SERIAL PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',
		segment TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT '',
		order_count INTEGER NOT NULL DEFAULT 0,
		total_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
		opted_in BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen_at TIMESTAMPTZ,
		last_order_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total DOUBLE PRECISION NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL DEFAULT 'cod',
		payment_status TEXT NOT NULL DEFAULT 'unpaid',
		payment_link TEXT NOT NULL DEFAULT '',
		payment_link_created_at TIMESTAMPTZ,
		payment_link_expires_at TIMESTAMPTZ,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		delivery_check_sent BOOLEAN NOT NULL DEFAULT FALSE,
		review_request_sent BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		phone TEXT NOT NULL,
		total DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		reminder_count INTEGER NOT NULL DEFAULT 0,
		last_reminder_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		subject TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recipients_campaign_status ON campaign_recipients (campaign_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reminder_events_lookup ON reminder_events (event_type, subject, created_at)`,
}

// Migrate creates all tables if they do not exist yet.
func Migrate(conn *sqlx.DB) error {
	schema := sqliteSchema
	if conn.DriverName() == "postgres" {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("database migration completed")
	return nil
}
