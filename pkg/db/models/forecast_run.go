package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
)

// ForecastRun is the header written once per forecast invocation.
type ForecastRun struct {
	ID            int64                `gorm:"column:id;primaryKey;autoIncrement"`
	Origin        enums.ForecastOrigin `gorm:"column:origin;not null"`
	ModelName     string               `gorm:"column:model_name;not null"`
	ModelVersion  string               `gorm:"column:model_version;not null"`
	PeriodStart   time.Time            `gorm:"column:period_start;type:date;not null"`
	PeriodEnd     time.Time            `gorm:"column:period_end;type:date;not null"`
	HorizonMonths int                  `gorm:"column:horizon_months;not null"`
	RequestedBy   *string              `gorm:"column:requested_by"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	Details       []ForecastDetail     `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (ForecastRun) TableName() string { return "forecast_runs" }

// ForecastDetail is one predicted product-month inside a run.
type ForecastDetail struct {
	ID             int64           `gorm:"column:id;primaryKey;autoIncrement"`
	RunID          int64           `gorm:"column:run_id;not null;index"`
	ProductID      *int64          `gorm:"column:product_id"`
	ProductName    string          `gorm:"column:product_name;not null;default:''"`
	TargetMonth    time.Time       `gorm:"column:target_month;type:date;not null"`
	PredictedValue decimal.Decimal `gorm:"column:predicted_value;type:numeric(18,4);not null"`
	BaselineValue  decimal.Decimal `gorm:"column:baseline_value;type:numeric(18,4);not null"`
	ABC            *string         `gorm:"column:abc"`
	XYZ            *string         `gorm:"column:xyz"`
	CombinedLabel  *string         `gorm:"column:combined_label"`
}

func (ForecastDetail) TableName() string { return "forecast_details" }
