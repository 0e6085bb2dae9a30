package forecast

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/abcxyz-forecast/internal/repo"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
)

const detailBatchSize = 500

// DetailView is a stored detail joined with the current product name.
type DetailView struct {
	ID             int64     `json:"id"`
	RunID          int64     `json:"run_id"`
	ProductID      *int64    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	TargetMonth    time.Time `json:"target_month"`
	PredictedValue float64   `json:"predicted_value"`
	BaselineValue  float64   `json:"baseline_value"`
	ABC            *string   `json:"abc"`
	XYZ            *string   `json:"xyz"`
	CombinedLabel  *string   `json:"combined_label"`
}

// Repository persists forecast runs and their details.
type Repository struct {
	repo.Base
}

// NewRepository binds the repository to a GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) runRepository {
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) CreateRun(ctx context.Context, run *models.ForecastRun) error {
	return r.DB(ctx).Omit("Details").Create(run).Error
}

func (r *Repository) CreateDetails(ctx context.Context, details []models.ForecastDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(details, detailBatchSize).Error
}

// ListRuns returns runs newest first; afterID > 0 continues below that id.
func (r *Repository) ListRuns(ctx context.Context, limit int, afterID int64) ([]models.ForecastRun, error) {
	q := r.DB(ctx).Model(&models.ForecastRun{})
	if afterID > 0 {
		q = q.Where("id < ?", afterID)
	}
	var runs []models.ForecastRun
	if err := q.Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) FindRun(ctx context.Context, id int64) (*models.ForecastRun, error) {
	var run models.ForecastRun
	if err := r.DB(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *Repository) ListDetails(ctx context.Context, runID int64) ([]DetailView, error) {
	var rows []struct {
		ID             int64
		RunID          int64
		ProductID      *int64
		ProductName    string
		TargetMonth    time.Time
		PredictedValue float64
		BaselineValue  float64
		ABC            *string
		XYZ            *string
		CombinedLabel  *string
	}
	err := r.DB(ctx).
		Table("forecast_details AS d").
		Select(`d.id AS id, d.run_id AS run_id, d.product_id AS product_id,
			COALESCE(p.name, d.product_name) AS product_name, d.target_month AS target_month,
			CAST(d.predicted_value AS DOUBLE PRECISION) AS predicted_value,
			CAST(d.baseline_value AS DOUBLE PRECISION) AS baseline_value,
			d.abc AS abc, d.xyz AS xyz, d.combined_label AS combined_label`).
		Joins("LEFT JOIN products AS p ON p.id = d.product_id").
		Where("d.run_id = ?", runID).
		Order("d.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]DetailView, len(rows))
	for i, row := range rows {
		out[i] = DetailView(row)
	}
	return out, nil
}

// DeleteRun removes a run and its details, reporting whether the run existed.
func (r *Repository) DeleteRun(ctx context.Context, id int64) (bool, error) {
	if err := r.DB(ctx).Where("run_id = ?", id).Delete(&models.ForecastDetail{}).Error; err != nil {
		return false, err
	}
	res := r.DB(ctx).Delete(&models.ForecastRun{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteRunsBefore removes runs created before cutoff with their details.
func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	old := r.DB(ctx).Model(&models.ForecastRun{}).Select("id").Where("created_at < ?", cutoff)
	if err := r.DB(ctx).Where("run_id IN (?)", old).Delete(&models.ForecastDetail{}).Error; err != nil {
		return 0, err
	}
	res := r.DB(ctx).Where("created_at < ?", cutoff).Delete(&models.ForecastRun{})
	return res.RowsAffected, res.Error
}

// SalesHistoryRepository implements SalesHistory for postgres and sqlite.
type SalesHistoryRepository struct {
	repo.Base
}

// NewSalesHistoryRepository binds the aggregates to a connection.
func NewSalesHistoryRepository(db *gorm.DB) *SalesHistoryRepository {
	return &SalesHistoryRepository{Base: repo.NewBase(db)}
}

func (r *SalesHistoryRepository) MonthTotal(ctx context.Context, productID int64, monthStart time.Time) (*float64, error) {
	return r.Scalar(ctx, `SELECT CAST(SUM(amount) AS DOUBLE PRECISION) FROM sales
		WHERE product_id = ? AND status = ? AND sold_at >= ? AND sold_at < ?`,
		productID, models.SaleStatusActive, monthStart, monthStart.AddDate(0, 1, 0))
}

func (r *SalesHistoryRepository) LatestMonthTotalBefore(ctx context.Context, productID int64, before time.Time) (*float64, error) {
	bucket := r.MonthBucket("sold_at")
	return r.Scalar(ctx, fmt.Sprintf(`SELECT CAST(SUM(amount) AS DOUBLE PRECISION) FROM sales
		WHERE product_id = ? AND status = ? AND sold_at < ?
		GROUP BY %s ORDER BY %s DESC LIMIT 1`, bucket, bucket),
		productID, models.SaleStatusActive, before)
}

func (r *SalesHistoryRepository) ProductMonthlyAverage(ctx context.Context, productID int64) (*float64, error) {
	return r.Scalar(ctx, fmt.Sprintf(`SELECT CAST(AVG(monthly) AS DOUBLE PRECISION) FROM (
		SELECT SUM(amount) AS monthly FROM sales
		WHERE product_id = ? AND status = ?
		GROUP BY %s) t`, r.MonthBucket("sold_at")),
		productID, models.SaleStatusActive)
}

func (r *SalesHistoryRepository) GlobalMonthlyAverage(ctx context.Context) (*float64, error) {
	return r.Scalar(ctx, fmt.Sprintf(`SELECT CAST(AVG(monthly) AS DOUBLE PRECISION) FROM (
		SELECT SUM(amount) AS monthly FROM sales
		WHERE status = ?
		GROUP BY product_id, %s) t`, r.MonthBucket("sold_at")),
		models.SaleStatusActive)
}
