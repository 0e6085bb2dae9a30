package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Brand groups products for target encoding and reporting.
type Brand struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Brand) TableName() string { return "brands" }

// Product is one catalog item.
type Product struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string          `gorm:"column:name;not null"`
	BrandID   *int64          `gorm:"column:brand_id"`
	Brand     *Brand          `gorm:"foreignKey:BrandID"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Product) TableName() string { return "products" }

// SaleStatusActive marks sales that count towards aggregates.
const SaleStatusActive = 1

// Sale is one sales transaction line.
type Sale struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID int64           `gorm:"column:product_id;not null;index"`
	ClientID  *int64          `gorm:"column:client_id"`
	SoldAt    time.Time       `gorm:"column:sold_at;not null;index"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null;default:0"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null;default:0"`
	Status    int             `gorm:"column:status;not null"`
}

func (Sale) TableName() string { return "sales" }
