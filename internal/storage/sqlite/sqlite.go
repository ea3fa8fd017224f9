package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/FranksOps/shelf/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	url TEXT PRIMARY KEY,
	name TEXT,
	price_rub REAL,
	weight_g REAL,
	kcal_per_100g REAL,
	proteins_g_per_100g REAL,
	fats_g_per_100g REAL,
	carbs_g_per_100g REAL,
	shelf_life_days REAL,
	storage_temp_min_c REAL,
	storage_temp_max_c REAL,
	category_main TEXT,
	category_path TEXT,
	brand TEXT,
	country TEXT,
	manufacturer TEXT,
	rating REAL,
	ratings_count INTEGER,
	ingredients TEXT,
	tags TEXT,
	image_path TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

var insertQuery = fmt.Sprintf(
	`INSERT OR IGNORE INTO products (%s) VALUES (%s)`,
	strings.Join(storage.Columns, ", "),
	strings.TrimSuffix(strings.Repeat("?, ", len(storage.Columns)), ", "),
)

func (b *sqliteBackend) Save(ctx context.Context, p *storage.Product) error {
	if _, err := b.db.ExecContext(ctx, insertQuery, p.Values()...); err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", p.URL, err)
	}
	return nil
}

func (b *sqliteBackend) URLs(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT url FROM products ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("sqlite: scan url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return urls, nil
}

// get loads one product by url, nil when absent.
func (b *sqliteBackend) get(ctx context.Context, url string) (*storage.Product, error) {
	var p storage.Product
	row := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE url = ?`, strings.Join(storage.Columns, ", ")), url)
	err := row.Scan(
		&p.URL, &p.Name, &p.PriceRub, &p.WeightG, &p.KcalPer100g,
		&p.ProteinsPer100g, &p.FatsPer100g, &p.CarbsPer100g, &p.ShelfLifeDays,
		&p.StorageTempMinC, &p.StorageTempMaxC, &p.CategoryMain, &p.CategoryPath,
		&p.Brand, &p.Country, &p.Manufacturer, &p.Rating, &p.RatingsCount,
		&p.Ingredients, &p.Tags, &p.ImagePath,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", url, err)
	}
	return &p, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
