package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestBaseDBBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBindKeepsBaseWithoutTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	if base.Bind(nil).db != db {
		t.Fatal("nil tx should keep the original connection")
	}
	tx := db.Session(&gorm.Session{})
	if base.Bind(tx).db != tx {
		t.Fatal("expected tx-bound base")
	}
}

func TestMonthBucketFollowsDialect(t *testing.T) {
	base := NewBase(newTestDB(t))
	if !base.IsSQLite() {
		t.Fatal("expected sqlite dialect")
	}
	if got := base.MonthBucket("sold_at"); got != "strftime('%Y-%m', sold_at)" {
		t.Fatalf("unexpected bucket %q", got)
	}
	if got := (Base{}).MonthBucket("sold_at"); got != "date_trunc('month', sold_at)" {
		t.Fatalf("unexpected default bucket %q", got)
	}
}

func TestScalarHandlesNullAndValues(t *testing.T) {
	db := newTestDB(t)
	if err := db.Exec("CREATE TABLE samples (v REAL)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	base := NewBase(db)
	ctx := context.Background()

	got, err := base.Scalar(ctx, "SELECT SUM(v) FROM samples")
	if err != nil || got != nil {
		t.Fatalf("expected nil for empty aggregate, got %v %v", got, err)
	}

	if err := db.Exec("INSERT INTO samples (v) VALUES (1.5), (0)").Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err = base.Scalar(ctx, "SELECT SUM(v) FROM samples")
	if err != nil || got == nil || *got != 1.5 {
		t.Fatalf("expected 1.5, got %v %v", got, err)
	}

	got, err = base.Scalar(ctx, "SELECT v FROM samples WHERE v > 10")
	if err != nil || got != nil {
		t.Fatalf("expected nil for no rows, got %v %v", got, err)
	}
}
