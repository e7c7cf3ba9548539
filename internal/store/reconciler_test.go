package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	// A named shared-cache database per test keeps all connections on the
	// same in-memory store without leaking state between tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Bootstrap(context.Background(), db))
	return db
}

func testOrder() Order {
	number := "A1"
	storeID := "5"
	return Order{
		ExternalID:  "100",
		OrderNumber: &number,
		StoreID:     &storeID,
		TotalValue:  199.90,
		StatusID:    "3",
	}
}

func testItems() []OrderItem {
	return []OrderItem{
		{SKU: "SKU1", Quantity: 2, UnitValue: 99.95, Description: "Widget"},
	}
}

func countRows(t *testing.T, db *bun.DB, model any) int {
	t.Helper()
	n, err := db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestReconcileInsertsOrderAndItems(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	require.NoError(t, rec.Reconcile(ctx, testOrder(), testItems()))

	var got Order
	require.NoError(t, db.NewSelect().Model(&got).Where("external_id = ?", "100").Scan(ctx))
	require.Equal(t, "A1", *got.OrderNumber)
	require.Equal(t, "3", got.StatusID)
	require.False(t, got.UpdatedAt.IsZero())

	var items []OrderItem
	require.NoError(t, db.NewSelect().Model(&items).Scan(ctx))
	require.Len(t, items, 1)
	require.Equal(t, got.ID, items[0].OrderID, "items must join on the internal id")
	require.Equal(t, "SKU1", items[0].SKU)
	require.EqualValues(t, 2, items[0].Quantity)
}

func TestReconcileIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	require.NoError(t, rec.Reconcile(ctx, testOrder(), testItems()))

	var first Order
	require.NoError(t, db.NewSelect().Model(&first).Where("external_id = ?", "100").Scan(ctx))

	require.NoError(t, rec.Reconcile(ctx, testOrder(), testItems()))

	require.Equal(t, 1, countRows(t, db, (*Order)(nil)), "redelivery must not duplicate the order")
	require.Equal(t, 1, countRows(t, db, (*OrderItem)(nil)), "redelivery must not duplicate items")

	var second Order
	require.NoError(t, db.NewSelect().Model(&second).Where("external_id = ?", "100").Scan(ctx))
	require.Equal(t, first.ID, second.ID, "internal id must be stable across redeliveries")
	require.False(t, second.UpdatedAt.Before(first.UpdatedAt), "updated_at must advance monotonically")
}

func TestReconcileConvergence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	require.NoError(t, rec.Reconcile(ctx, testOrder(), testItems()))

	updated := testOrder()
	updated.TotalValue = 250.00
	updated.StatusID = "9"
	require.NoError(t, rec.Reconcile(ctx, updated, testItems()))

	require.Equal(t, 1, countRows(t, db, (*Order)(nil)))

	var got Order
	require.NoError(t, db.NewSelect().Model(&got).Where("external_id = ?", "100").Scan(ctx))
	require.Equal(t, 250.00, got.TotalValue, "mutable fields take the latest delivery's values")
	require.Equal(t, "9", got.StatusID)
	require.Equal(t, 1, countRows(t, db, (*OrderItem)(nil)), "line item count unchanged")
}

func TestReconcileUpdatesItemInPlace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	require.NoError(t, rec.Reconcile(ctx, testOrder(), testItems()))

	changed := testItems()
	changed[0].Quantity = 5
	changed[0].Description = "Widget v2"
	require.NoError(t, rec.Reconcile(ctx, testOrder(), changed))

	var items []OrderItem
	require.NoError(t, db.NewSelect().Model(&items).Scan(ctx))
	require.Len(t, items, 1)
	require.EqualValues(t, 5, items[0].Quantity)
	require.Equal(t, "Widget v2", items[0].Description)
}

func TestReconcileSameSKUAcrossOrders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	require.NoError(t, rec.Reconcile(ctx, testOrder(), testItems()))

	other := testOrder()
	other.ExternalID = "200"
	require.NoError(t, rec.Reconcile(ctx, other, testItems()))

	// Same SKU under two different orders is two rows, not a conflict.
	require.Equal(t, 2, countRows(t, db, (*Order)(nil)))
	require.Equal(t, 2, countRows(t, db, (*OrderItem)(nil)))
}

func TestReconcileRollsBackOnItemFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	// Sabotage the item table so the item upsert fails mid-transaction.
	_, err := db.NewDropTable().Model((*OrderItem)(nil)).Exec(ctx)
	require.NoError(t, err)

	err = rec.Reconcile(ctx, testOrder(), testItems())
	require.Error(t, err)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)

	// The order upsert preceded the failure; it must not be visible.
	require.Equal(t, 0, countRows(t, db, (*Order)(nil)), "no partial write may survive a failed unit of work")
}

func TestRecordDelivery(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rec := NewReconciler(db)

	externalID := "100"
	require.NoError(t, rec.RecordDelivery(ctx, Delivery{
		ID:         "d-1",
		Event:      "order.created",
		ExternalID: &externalID,
		Status:     DeliveryReconciled,
	}))

	var got Delivery
	require.NoError(t, db.NewSelect().Model(&got).Where("id = ?", "d-1").Scan(ctx))
	require.Equal(t, DeliveryReconciled, got.Status)
	require.False(t, got.CreatedAt.IsZero())

	// Duplicate receipt ids are a StoreError, not a silent overwrite.
	err := rec.RecordDelivery(ctx, Delivery{ID: "d-1", Event: "order.created", Status: DeliveryFailed})
	require.Error(t, err)
	require.ErrorAs(t, err, new(*StoreError))
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	rec := NewReconciler(db)
	require.NoError(t, rec.Ping(context.Background()))
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &StoreError{Op: "reconcile order 1", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "reconcile order 1")
}
