// Package dbtest opens a migrated PostgreSQL schema for repository tests. Tests are
// skipped unless BOOKHAVEN_TEST_DATABASE_URL points at a reachable database.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/migrations"
)

// EnvDSN names the variable holding the test database URL.
const EnvDSN = "BOOKHAVEN_TEST_DATABASE_URL"

// Open creates a private schema, applies the embedded migrations to it and returns a
// pool whose search_path points there. The schema is dropped when the test ends.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set; skipping PostgreSQL test", EnvDSN)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	ident := pgx.Identifier{schema}.Sanitize()
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+ident)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 8
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.Exec(cleanupCtx, "DROP SCHEMA "+ident+" CASCADE")
		_ = admin.Close(cleanupCtx)
	})

	_, err = db.Migrate(ctx, pool, migrations.Files)
	require.NoError(t, err)
	return pool
}

// User inserts an active customer and returns its id.
func User(t testing.TB, pool *pgxpool.Pool, email string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO users (email, full_name, password_hash) VALUES ($1, $2, 'x') RETURNING id`,
		email, email).Scan(&id)
	require.NoError(t, err)
	return id
}

// Product inserts an active product with the given price and cached stock.
func Product(t testing.TB, pool *pgxpool.Pool, sku string, price decimal.Decimal, stock int) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO products (sku, title, price, stock) VALUES ($1, $1, $2, $3) RETURNING id`,
		sku, price, stock).Scan(&id)
	require.NoError(t, err)
	return id
}

// Stock reads a product's cached stock counter.
func Stock(t testing.TB, pool *pgxpool.Pool, productID int64) int {
	t.Helper()
	var stock int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock))
	return stock
}
