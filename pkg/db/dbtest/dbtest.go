// Package dbtest opens sqlite databases carrying the application schema for
// repository and service tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// schema mirrors pkg/migrate/migrations in sqlite types.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_name TEXT,
		email TEXT,
		phone TEXT,
		address TEXT,
		notes TEXT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		user_id TEXT,
		last_seen_at DATETIME,
		last_orders_read_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		item_number TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		images TEXT NOT NULL DEFAULT '{}',
		selling_price TEXT,
		stock INTEGER NOT NULL DEFAULT 0,
		reorder_level INTEGER NOT NULL DEFAULT 0,
		is_visible BOOLEAN NOT NULL DEFAULT 1,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_products_item_number_active ON products(item_number) WHERE is_active`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		vendor_id TEXT,
		client_id TEXT,
		created_by_kind TEXT NOT NULL,
		created_by_id TEXT NOT NULL,
		flow TEXT NOT NULL DEFAULT 'supply',
		status TEXT NOT NULL DEFAULT 'pending',
		price_approval_status TEXT NOT NULL DEFAULT 'pending',
		confirmation_date TEXT,
		shipping_date TEXT,
		arrival_date TEXT,
		invoice_number TEXT,
		transfer_amount TEXT,
		notes TEXT,
		image TEXT,
		total_amount TEXT NOT NULL DEFAULT '0',
		stock_adjusted BOOLEAN NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		item_number TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT,
		total_price TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		price_approval_status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		confirmation_date TEXT,
		invoice_number TEXT,
		transfer_amount TEXT,
		shipping_date TEXT,
		arrival_date TEXT,
		notes TEXT,
		image TEXT,
		stock_adjusted BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_purchases (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		order_item_id TEXT NOT NULL,
		order_number TEXT NOT NULL,
		item_number TEXT NOT NULL,
		product_name TEXT NOT NULL,
		vendor_id TEXT,
		vendor_name TEXT,
		flow TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT,
		total_price TEXT NOT NULL DEFAULT '0',
		purchased_at DATETIME NOT NULL
	)`,
	`CREATE TABLE demands (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		product_id TEXT,
		item_number TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT,
		decided_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		audience TEXT NOT NULL,
		recipient_id TEXT,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME
	)`,
}

// Open returns a private in-memory database with every table created. The
// pool is pinned to one connection so the memory database is shared by all
// queries and concurrent transactions serialize instead of failing.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:vendorcrm_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}
