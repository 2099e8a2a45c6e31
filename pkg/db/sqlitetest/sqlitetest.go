// Package sqlitetest opens throwaway in-memory sqlite databases carrying the
// marketplace schema so repositories and services can be exercised end to end.
package sqlitetest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
)

// schema mirrors the goose migrations with sqlite column types. Money columns
// are TEXT so decimals round-trip without float conversion.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		full_name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE buyer_profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		phone TEXT,
		delivery_address TEXT,
		city TEXT,
		state TEXT,
		zip_code TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		farmer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT,
		product_type TEXT NOT NULL,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		unit TEXT NOT NULL,
		location TEXT,
		city TEXT,
		state TEXT,
		is_approved BOOLEAN NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_out_of_stock BOOLEAN NOT NULL DEFAULT 0,
		approved_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT cart_items_cart_product_key UNIQUE (cart_id, product_id)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		order_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		total_amount TEXT NOT NULL,
		delivery_address TEXT,
		delivery_city TEXT,
		delivery_state TEXT,
		delivery_zip TEXT,
		delivery_phone TEXT,
		buyer_notes TEXT,
		admin_notes TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		approved_at DATETIME,
		rejected_at DATETIME,
		completed_at DATETIME
	)`,
	`CREATE TABLE order_line_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		farmer_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		product_price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE stock_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		order_id TEXT,
		order_line_item_id TEXT,
		farmer_id TEXT NOT NULL,
		quantity_delta INTEGER NOT NULL,
		quantity_before INTEGER NOT NULL,
		quantity_after INTEGER NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE activity_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		entity_type TEXT,
		entity_id TEXT,
		description TEXT NOT NULL,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
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
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh database with the full schema. The pool is capped at a
// single connection, so concurrent transactions run one after another the way
// FOR UPDATE row locks would order them in Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:fl_%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// OpenClient wraps Open in a *db.Client for services that take a tx runner.
func OpenClient(t testing.TB) (*dbpkg.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return dbpkg.Wrap(conn), conn
}
