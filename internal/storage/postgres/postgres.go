package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/shelf/internal/storage"
)

// ensure Store implements storage.Backend
var _ storage.Backend = (*Store)(nil)

const defaultTable = "products"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store writes products into a Postgres table.
type Store struct {
	pool  pgxPool
	table string
}

const schema = `
CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	name TEXT,
	price_rub DOUBLE PRECISION,
	weight_g DOUBLE PRECISION,
	kcal_per_100g DOUBLE PRECISION,
	proteins_g_per_100g DOUBLE PRECISION,
	fats_g_per_100g DOUBLE PRECISION,
	carbs_g_per_100g DOUBLE PRECISION,
	shelf_life_days DOUBLE PRECISION,
	storage_temp_min_c DOUBLE PRECISION,
	storage_temp_max_c DOUBLE PRECISION,
	category_main TEXT,
	category_path TEXT,
	brand TEXT,
	country TEXT,
	manufacturer TEXT,
	rating DOUBLE PRECISION,
	ratings_count INTEGER,
	ingredients TEXT,
	tags TEXT,
	image_path TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// New creates a new Postgres-backed storage.Backend and ensures its table
// exists.
func New(ctx context.Context, cfg Config) (storage.Backend, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	b, err := NewWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// NewWithPool constructs a backend from an existing pool, used by tests.
func NewWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres: pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

func (b *Store) migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, fmt.Sprintf(schema, b.table)); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", b.table, err)
	}
	return nil
}

func (b *Store) insertQuery() string {
	placeholders := make([]string, len(storage.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (url) DO NOTHING`,
		b.table, strings.Join(storage.Columns, ", "), strings.Join(placeholders, ", "),
	)
}

func (b *Store) Save(ctx context.Context, p *storage.Product) error {
	if _, err := b.pool.Exec(ctx, b.insertQuery(), p.Values()...); err != nil {
		return fmt.Errorf("postgres: insert %s: %w", p.URL, err)
	}
	return nil
}

func (b *Store) URLs(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, fmt.Sprintf(`SELECT url FROM %s ORDER BY created_at`, b.table))
	if err != nil {
		return nil, fmt.Errorf("postgres: query urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect urls: %w", err)
	}
	return urls, nil
}

func (b *Store) Close() error {
	b.pool.Close()
	return nil
}
