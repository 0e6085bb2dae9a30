package abcxyz

import "github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"

// AggregateSeries sums sales into one quantity and amount series per catalog item, aligned to
// months. Sales outside the window or for unknown products are dropped. Every catalog item gets
// a series, in catalog order, even when it sold nothing.
func AggregateSeries(catalog []CatalogItem, sales []SaleRecord, months []string) []ProductSeries {
	slot := make(map[string]int, len(months))
	for i, key := range months {
		slot[key] = i
	}
	position := make(map[int64]int, len(catalog))
	out := make([]ProductSeries, len(catalog))
	for i, item := range catalog {
		id := item.ID
		position[id] = i
		out[i] = ProductSeries{
			ProductID:   &id,
			ProductName: item.Name,
			Brand:       item.Brand,
			Quantity:    make([]float64, len(months)),
			Amount:      make([]float64, len(months)),
		}
	}

	for _, sale := range sales {
		row, ok := position[sale.ProductID]
		if !ok {
			continue
		}
		col, ok := slot[monthkey.Format(sale.SoldAt.UTC())]
		if !ok {
			continue
		}
		out[row].Quantity[col] += sale.Quantity
		out[row].Amount[col] += sale.Amount
	}
	return out
}
