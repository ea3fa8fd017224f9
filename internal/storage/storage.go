// Package storage defines the product record and the backends that persist
// it.
package storage

import (
	"context"
	"strconv"
)

// Product is one extracted product page. Every field except URL may be nil,
// which means the page did not provide it.
type Product struct {
	URL             string   `json:"url"`
	Name            *string  `json:"name"`
	PriceRub        *float64 `json:"price_rub"`
	WeightG         *float64 `json:"weight_g"`
	KcalPer100g     *float64 `json:"kcal_per_100g"`
	ProteinsPer100g *float64 `json:"proteins_g_per_100g"`
	FatsPer100g     *float64 `json:"fats_g_per_100g"`
	CarbsPer100g    *float64 `json:"carbs_g_per_100g"`
	ShelfLifeDays   *float64 `json:"shelf_life_days"`
	StorageTempMinC *float64 `json:"storage_temp_min_c"`
	StorageTempMaxC *float64 `json:"storage_temp_max_c"`
	CategoryMain    *string  `json:"category_main"`
	CategoryPath    *string  `json:"category_path"`
	Brand           *string  `json:"brand"`
	Country         *string  `json:"country"`
	Manufacturer    *string  `json:"manufacturer"`
	Rating          *float64 `json:"rating"`
	RatingsCount    *int     `json:"ratings_count"`
	Ingredients     *string  `json:"ingredients"`
	Tags            *string  `json:"tags"`
	ImagePath       *string  `json:"image_path"`
}

// Columns is the fixed column order of tabular output.
var Columns = []string{
	"url",
	"name",
	"price_rub",
	"weight_g",
	"kcal_per_100g",
	"proteins_g_per_100g",
	"fats_g_per_100g",
	"carbs_g_per_100g",
	"shelf_life_days",
	"storage_temp_min_c",
	"storage_temp_max_c",
	"category_main",
	"category_path",
	"brand",
	"country",
	"manufacturer",
	"rating",
	"ratings_count",
	"ingredients",
	"tags",
	"image_path",
}

// Values returns the fields in Columns order as plain Go values, with nil
// for absent fields.
func (p *Product) Values() []any {
	return []any{
		p.URL,
		p.Name,
		p.PriceRub,
		p.WeightG,
		p.KcalPer100g,
		p.ProteinsPer100g,
		p.FatsPer100g,
		p.CarbsPer100g,
		p.ShelfLifeDays,
		p.StorageTempMinC,
		p.StorageTempMaxC,
		p.CategoryMain,
		p.CategoryPath,
		p.Brand,
		p.Country,
		p.Manufacturer,
		p.Rating,
		p.RatingsCount,
		p.Ingredients,
		p.Tags,
		p.ImagePath,
	}
}

// Row renders the fields in Columns order as text cells: empty for absent
// fields, floats with up to ten significant digits.
func (p *Product) Row() []string {
	values := p.Values()
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = Cell(v)
	}
	return row
}

// Missing lists the columns whose value is absent.
func (p *Product) Missing() []string {
	var missing []string
	for i, v := range p.Values() {
		if Cell(v) == "" {
			missing = append(missing, Columns[i])
		}
	}
	return missing
}

// Cell formats one field value for tabular output.
func Cell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case *float64:
		if x == nil {
			return ""
		}
		return FormatFloat(*x)
	case *int:
		if x == nil {
			return ""
		}
		return strconv.Itoa(*x)
	default:
		return ""
	}
}

// FormatFloat renders v like printf's %.10g.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// Backend defines the interface for persisting product records.
type Backend interface {
	// Save stores p. Saving a URL that is already stored must not create a
	// second record.
	Save(ctx context.Context, p *Product) error
	// URLs lists the product URLs already stored, used to skip them on the
	// next run.
	URLs(ctx context.Context) ([]string, error)
	Close() error
}
