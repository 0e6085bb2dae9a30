package repo

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

const dialectSQLite = "sqlite"

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base over tx, or b itself when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// IsSQLite reports whether the connection talks to SQLite.
func (b Base) IsSQLite() bool {
	return b.db != nil && b.db.Dialector != nil && b.db.Dialector.Name() == dialectSQLite
}

// MonthBucket returns a GROUP BY expression truncating column to its calendar month.
func (b Base) MonthBucket(column string) string {
	if b.IsSQLite() {
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
	}
	return fmt.Sprintf("date_trunc('month', %s)", column)
}

// Scalar runs a single-value numeric query. A missing row or SQL NULL yields nil.
func (b Base) Scalar(ctx context.Context, query string, args ...any) (*float64, error) {
	rows, err := b.DB(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var v sql.NullFloat64
	if err := rows.Scan(&v); err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	return &v.Float64, nil
}
