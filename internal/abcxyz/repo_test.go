package abcxyz

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/abcxyz-forecast/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Brand{}, &models.Product{}, &models.Sale{}, &models.ABCXYZCutoffs{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func seedCatalog(t *testing.T, conn *gorm.DB) {
	t.Helper()
	brand := models.Brand{Name: "Acme"}
	require.NoError(t, conn.Create(&brand).Error)
	require.NoError(t, conn.Create(&models.Product{ID: 1, Name: "Widget", BrandID: &brand.ID, Price: decimal.NewFromInt(5)}).Error)
	require.NoError(t, conn.Create(&models.Product{ID: 2, Name: "Gadget"}).Error)
}

func sale(productID int64, at time.Time, qty, amount int64) *models.Sale {
	return &models.Sale{
		ProductID: productID,
		SoldAt:    at,
		Quantity:  decimal.NewFromInt(qty),
		Amount:    decimal.NewFromInt(amount),
		Status:    models.SaleStatusActive,
	}
}

func TestRepositoryCatalogAndSales(t *testing.T) {
	conn := newTestDB(t)
	seedCatalog(t, conn)
	repo := NewRepository(conn)
	ctx := context.Background()

	catalog, err := repo.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, CatalogItem{ID: 1, Name: "Widget", Brand: "Acme"}, catalog[0])
	assert.Equal(t, CatalogItem{ID: 2, Name: "Gadget"}, catalog[1])

	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(sale(1, jan, 2, 10)).Error)
	require.NoError(t, conn.Create(sale(1, jan.AddDate(0, 1, 0), 3, 15)).Error)
	require.NoError(t, conn.Create(sale(2, jan.AddDate(-1, 0, 0), 9, 90)).Error)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sales, err := repo.SalesBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, 2.0, sales[0].Quantity)
	assert.Equal(t, 15.0, sales[1].Amount)

	products, err := repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, products)

	all, err := repo.CountSales(ctx, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all)

	inWindow, err := repo.CountSales(ctx, &from, &to)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inWindow)
}

func TestRepositoryCutoffsUpsert(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	row, err := repo.GetCutoffs(ctx)
	require.NoError(t, err)
	assert.Nil(t, row)

	require.NoError(t, repo.SaveCutoffs(ctx, &models.ABCXYZCutoffs{ACut: 0.7, BCut: 0.9, XCut: 0.4, YCut: 0.8}))
	require.NoError(t, repo.SaveCutoffs(ctx, &models.ABCXYZCutoffs{ACut: 0.6, BCut: 0.85, XCut: 0.3, YCut: 0.7}))

	row, err = repo.GetCutoffs(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 0.6, row.ACut)
	assert.Equal(t, 0.7, row.YCut)

	var count int64
	require.NoError(t, conn.Model(&models.ABCXYZCutoffs{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
