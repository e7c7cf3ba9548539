// Package store persists normalized order data. Reconcile is the only
// write path for orders and line items and runs as a single transaction:
// redelivery of the same event converges on one row per natural key
// instead of duplicating.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ErrInconsistent reports that the order row could not be resolved right
// after its own upsert. The unique constraint on external_id makes this
// unreachable unless the schema is broken, so it aborts the transaction
// instead of skipping line items.
var ErrInconsistent = errors.New("order not visible after upsert")

// StoreError wraps any failure inside the reconcile unit of work. The
// transaction has been rolled back by the time it is returned.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Reconciler applies order events to the relational store.
type Reconciler struct {
	db *bun.DB
}

// NewReconciler returns a Reconciler backed by db.
func NewReconciler(db *bun.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Reconcile upserts the order by its natural key, resolves the internal
// id the upsert settled on, and upserts every line item against that id.
// All writes happen in one transaction; on error nothing is committed.
func (r *Reconciler) Reconcile(ctx context.Context, order Order, items []OrderItem) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewInsert().Model(&order).
			On("CONFLICT (external_id) DO UPDATE").
			Set("order_number = EXCLUDED.order_number").
			Set("store_id = EXCLUDED.store_id").
			Set("invoice_id = EXCLUDED.invoice_id").
			Set("order_date = EXCLUDED.order_date").
			Set("ship_date = EXCLUDED.ship_date").
			Set("delivery_date = EXCLUDED.delivery_date").
			Set("total_value = EXCLUDED.total_value").
			Set("status_id = EXCLUDED.status_id").
			Set("discount_value = EXCLUDED.discount_value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert order %s: %w", order.ExternalID, err)
		}

		// The select runs inside the same transaction so it observes the
		// upsert above regardless of isolation level.
		var internalID int64
		if err := tx.NewSelect().Model((*Order)(nil)).
			Column("id").
			Where("external_id = ?", order.ExternalID).
			Scan(ctx, &internalID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("resolve order %s: %w", order.ExternalID, ErrInconsistent)
			}
			return fmt.Errorf("resolve order %s: %w", order.ExternalID, err)
		}

		for i := range items {
			item := items[i]
			item.OrderID = internalID
			if _, err := tx.NewInsert().Model(&item).
				On("CONFLICT (order_id, sku) DO UPDATE").
				Set("quantity = EXCLUDED.quantity").
				Set("unit_value = EXCLUDED.unit_value").
				Set("description = EXCLUDED.description").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert item %s for order %s: %w", item.SKU, order.ExternalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Op: "reconcile order " + order.ExternalID, Err: err}
	}
	return nil
}

// Ping reports database connectivity.
func (r *Reconciler) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordDelivery writes a processing receipt for one webhook delivery.
func (r *Reconciler) RecordDelivery(ctx context.Context, d Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(&d).Exec(ctx); err != nil {
		return &StoreError{Op: "record delivery " + d.ID, Err: err}
	}
	return nil
}
