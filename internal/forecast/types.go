package forecast

import (
	"time"

	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
)

// BaselineModelName labels runs whose predictions are the spreadsheet baselines.
const BaselineModelName = "baseline_csv"

// Item is one product-month to forecast.
type Item struct {
	ProductID      *int64          `json:"product_id"`
	ProductName    string          `json:"product_name" validate:"required"`
	Brand          string          `json:"brand"`
	TargetMonth    string          `json:"target_month" validate:"required"`
	PriorPctChange *float64        `json:"pct_chg_1"`
	ABC            *enums.ABCLabel `json:"abc,omitempty" validate:"omitempty,oneof=A B C"`
	XYZ            *enums.XYZLabel `json:"xyz,omitempty" validate:"omitempty,oneof=X Y Z"`
}

// Input is a forecast request. ResultID pins the classification result used by the spreadsheet
// path; empty means the latest one.
type Input struct {
	Origin      enums.ForecastOrigin
	ResultID    string
	Items       []Item
	RequestedBy string
}

// Prediction is the per-item outcome returned to callers.
type Prediction struct {
	ProductID     int64   `json:"product_id"`
	ProductName   string  `json:"product_name"`
	TargetMonth   string  `json:"target_month"`
	Prediction    float64 `json:"prediction"`
	Baseline      float64 `json:"baseline"`
	Strategy      string  `json:"baseline_strategy"`
	CombinedLabel *string `json:"combined_label,omitempty"`
}

// Output summarizes a persisted forecast run.
type Output struct {
	RunID        int64                `json:"run_id"`
	Origin       enums.ForecastOrigin `json:"origin"`
	ModelName    string               `json:"model_name"`
	ModelVersion string               `json:"model_version"`
	ResultID     string               `json:"result_id,omitempty"`
	Predictions  []Prediction         `json:"predictions"`
}

// ModelInfo describes the loaded correction model.
type ModelInfo struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Gamma      float64  `json:"gamma"`
	GlobalMean float64  `json:"global_mean"`
	Columns    []string `json:"columns"`
	Loaded     bool     `json:"loaded"`
}

// RunSummary is a forecast run header.
type RunSummary struct {
	ID            int64                `json:"id"`
	Origin        enums.ForecastOrigin `json:"origin"`
	ModelName     string               `json:"model_name"`
	ModelVersion  string               `json:"model_version"`
	PeriodStart   string               `json:"period_start"`
	PeriodEnd     string               `json:"period_end"`
	HorizonMonths int                  `json:"horizon_months"`
	RequestedBy   *string              `json:"requested_by,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// RunList is one page of run headers, newest first.
type RunList struct {
	Runs       []RunSummary `json:"runs"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// RunDetail is a run header with its stored details.
type RunDetail struct {
	Run     RunSummary   `json:"run"`
	Details []DetailView `json:"details"`
}
