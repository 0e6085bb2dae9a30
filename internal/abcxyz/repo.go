package abcxyz

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/abcxyz-forecast/internal/repo"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
)

// Repository reads the catalog and sales and persists the cutoffs row.
type Repository struct {
	repo.Base
}

// NewRepository constructs a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Catalog lists every product with its brand name, ordered by id.
func (r *Repository) Catalog(ctx context.Context) ([]CatalogItem, error) {
	var rows []struct {
		ID    int64
		Name  string
		Brand *string
	}
	err := r.DB(ctx).
		Table("products").
		Select("products.id AS id, products.name AS name, brands.name AS brand").
		Joins("LEFT JOIN brands ON brands.id = products.brand_id").
		Order("products.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]CatalogItem, len(rows))
	for i, row := range rows {
		items[i] = CatalogItem{ID: row.ID, Name: row.Name}
		if row.Brand != nil {
			items[i].Brand = *row.Brand
		}
	}
	return items, nil
}

// SalesBetween returns sales with from <= sold_at < to.
func (r *Repository) SalesBetween(ctx context.Context, from, to time.Time) ([]SaleRecord, error) {
	var sales []models.Sale
	err := r.DB(ctx).
		Where("sold_at >= ? AND sold_at < ?", from, to).
		Order("id ASC").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}

	out := make([]SaleRecord, len(sales))
	for i, s := range sales {
		out[i] = SaleRecord{
			ProductID: s.ProductID,
			SoldAt:    s.SoldAt,
			Quantity:  s.Quantity.InexactFloat64(),
			Amount:    s.Amount.InexactFloat64(),
		}
	}
	return out, nil
}

// CountProducts returns the catalog size.
func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.Product{}).Count(&n).Error
	return n, err
}

// CountSales counts all sales, or only those in [from, to) when both bounds are set.
func (r *Repository) CountSales(ctx context.Context, from, to *time.Time) (int64, error) {
	q := r.DB(ctx).Model(&models.Sale{})
	if from != nil && to != nil {
		q = q.Where("sold_at >= ? AND sold_at < ?", *from, *to)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// GetCutoffs returns the stored thresholds or nil when none were saved yet.
func (r *Repository) GetCutoffs(ctx context.Context) (*models.ABCXYZCutoffs, error) {
	var row models.ABCXYZCutoffs
	err := r.DB(ctx).First(&row, "id = ?", models.ABCXYZCutoffsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveCutoffs upserts the single thresholds row.
func (r *Repository) SaveCutoffs(ctx context.Context, row *models.ABCXYZCutoffs) error {
	row.ID = models.ABCXYZCutoffsID
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"a_cut", "b_cut", "x_cut", "y_cut", "updated_by", "updated_at"}),
		}).
		Create(row).Error
}
