package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Code string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: queryLogger{}})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := FromGorm(conn)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Code: "210000"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Code: "210001"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}

	var count int64
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Create(&testModel{Code: "210000"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	err := conn.Create(&testModel{Code: "210000"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatalf("unrelated error classified as unique violation")
	}
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	if !IsUniqueViolation(err, "orders_order_number_key") {
		t.Fatalf("expected constraint match")
	}
	if IsUniqueViolation(err, "promo_codes_code_key") {
		t.Fatalf("expected constraint mismatch")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation is not a unique violation")
	}
}

func TestSQLDriverName(t *testing.T) {
	for in, want := range map[string]string{"": "pgx", "pgx": "pgx", " PQ ": "postgres", "postgres": "postgres"} {
		got, err := sqlDriverName(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got, "driver %q", in)
	}
	_, err := sqlDriverName("mysql")
	assert.Error(t, err)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := FromGorm(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Code: "210002"}).Error; err != nil {
				return err
			}
			panic("oven on fire")
		})
	})

	var count int64
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	assert.Zero(t, count)
}

func TestQueryLoggerIgnoresMissingRows(t *testing.T) {
	conn := newTestDB(t)
	var m testModel
	err := conn.First(&m, "code = ?", "nope").Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
