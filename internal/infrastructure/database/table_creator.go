// Package database provides tenant instantiation
package database

import (
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the database schema for a new tenant.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tenant's database tables and indexes.
func (tc *TableCreator) CreateSchema(db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// Schema definitions. Each tenant gets its own database file, so no table
// carries a tenant id column; isolation is physical.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS visitors (id TEXT PRIMARY KEY, email TEXT, fingerprint TEXT NOT NULL UNIQUE, first_source TEXT, first_medium TEXT, first_campaign TEXT, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS touches (id TEXT PRIMARY KEY, visitor_id TEXT NOT NULL REFERENCES visitors(id), source TEXT, medium TEXT, campaign TEXT, referrer TEXT, landing_page TEXT NOT NULL DEFAULT '', created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS purchases (id TEXT PRIMARY KEY, visitor_id TEXT REFERENCES visitors(id), email TEXT NOT NULL, amount_cents INTEGER NOT NULL, currency TEXT NOT NULL, product_name TEXT NOT NULL, platform TEXT NOT NULL, platform_purchase_id TEXT NOT NULL, first_source TEXT, first_medium TEXT, first_campaign TEXT, last_source TEXT, last_medium TEXT, last_campaign TEXT, status TEXT NOT NULL, launch_id TEXT REFERENCES launches(id), purchased_at TIMESTAMP NOT NULL, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS launches (id TEXT PRIMARY KEY, name TEXT NOT NULL, start_date TIMESTAMP NOT NULL, end_date TIMESTAMP NOT NULL, revenue_goal_cents INTEGER, sales_goal INTEGER, archived BOOLEAN NOT NULL DEFAULT 0, share_token TEXT UNIQUE, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, updated_at TIMESTAMP)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_visitors_email ON visitors(email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_fingerprint ON visitors(fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_touches_visitor_id ON touches(visitor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_touches_created_at ON touches(created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_purchases_platform_purchase ON purchases(platform, platform_purchase_id)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_purchased_at ON purchases(purchased_at)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_launch_id ON purchases(launch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_status ON purchases(status)`,
	`CREATE INDEX IF NOT EXISTS idx_launches_window ON launches(start_date, end_date)`,
}
