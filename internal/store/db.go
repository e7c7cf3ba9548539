package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"blinghook/internal/config"
)

// Open connects to Postgres using the configured DSN and verifies the
// connection with a bounded ping.
func Open(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Bootstrap creates the tables if missing. The unique constraints on
// orders.external_id and order_items(order_id, sku) are declared in the
// model tags; the upsert semantics depend on them.
func Bootstrap(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Order)(nil),
		(*OrderItem)(nil),
		(*Delivery)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
