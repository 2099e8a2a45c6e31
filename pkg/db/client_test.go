package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicky"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback to leave 0 records, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation, got %v", err)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "cart_items_cart_product_key"})
	if !IsUniqueViolation(pgErr, "cart_items_cart_product_key") {
		t.Fatalf("expected pg unique violation to match constraint")
	}
	if IsUniqueViolation(pgErr, "orders_order_number_key") {
		t.Fatalf("constraint name mismatch should not match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil error is never a violation")
	}
}

func TestIsCheckViolation(t *testing.T) {
	pgErr := fmt.Errorf("deduct: %w", &pgconn.PgError{Code: "23514", ConstraintName: "products_quantity_check"})
	if !IsCheckViolation(pgErr, "products_quantity_check") {
		t.Fatalf("expected pg check violation to match")
	}
	if IsUniqueViolation(pgErr, "") {
		t.Fatalf("check violation is not a unique violation")
	}
	if !IsCheckViolation(errors.New("CHECK constraint failed: quantity >= 0"), "") {
		t.Fatalf("expected sqlite check failure text to match")
	}
	if IsCheckViolation(errors.New("connection reset"), "") {
		t.Fatalf("unrelated errors must not match")
	}
}

func TestNewOpensSqliteDriver(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	client, err := New(context.Background(), config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}, logg)
	if err != nil {
		t.Fatalf("open sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if !bytes.Contains(buf.Bytes(), []byte(`"driver":"sqlite"`)) {
		t.Fatalf("expected connect log with driver, got %s", buf.String())
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "oracle", DSN: "x"}, nil)
	if err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := New(context.Background(), config.DBConfig{Driver: "sqlite"}, nil); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	db := newTestDB(t).Session(&gorm.Session{Logger: newQueryLogger(logg, time.Nanosecond).LogMode(gormlogger.Warn)})

	if err := db.Create(&testModel{Name: "slow"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("db.slow_query")) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	_ = db.Create(&testModel{Name: "slow"}).Error
	if !bytes.Contains(buf.Bytes(), []byte("db.query_failed")) {
		t.Fatalf("expected failed query entry, got %s", buf.String())
	}

	buf.Reset()
	var missing testModel
	_ = db.Where("name = ?", "nobody").Take(&missing).Error
	if bytes.Contains(buf.Bytes(), []byte("db.query_failed")) {
		t.Fatalf("record not found should not log as failure: %s", buf.String())
	}
}
