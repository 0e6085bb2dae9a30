package models

import "time"

// ABCXYZCutoffsID is the primary key of the single configuration row.
const ABCXYZCutoffsID = 1

// ABCXYZCutoffs persists the active classification thresholds.
type ABCXYZCutoffs struct {
	ID        int       `gorm:"column:id;primaryKey"`
	ACut      float64   `gorm:"column:a_cut;not null"`
	BCut      float64   `gorm:"column:b_cut;not null"`
	XCut      float64   `gorm:"column:x_cut;not null"`
	YCut      float64   `gorm:"column:y_cut;not null"`
	UpdatedBy *string   `gorm:"column:updated_by"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ABCXYZCutoffs) TableName() string { return "abcxyz_cutoffs" }
