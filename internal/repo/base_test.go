package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

type widget struct {
	ID   uint
	Name string
}

func TestBaseTransactionRollsBack(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:base_tx?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	base := NewBase(db)

	boom := errors.New("boom")
	err = base.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := base.WithTx(tx).DB(context.Background()).Create(&widget{Name: "a"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int64
	db.Model(&widget{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}

	var w widget
	if !IsNotFound(db.First(&w).Error) {
		t.Fatalf("expected not found")
	}
}

func TestWithTxNilKeepsConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if base.WithTx(nil).db != db {
		t.Fatalf("expected original connection")
	}
}
