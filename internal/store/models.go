package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is one reconciled order from the platform. ExternalID is the
// platform's own order id and is the natural key; ID is the surrogate key
// line items join on.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64  `bun:"id,pk,autoincrement"`
	ExternalID string `bun:"external_id,notnull,unique"`

	OrderNumber *string `bun:"order_number"`
	StoreID     *string `bun:"store_id"`
	InvoiceID   *string `bun:"invoice_id"`

	// Calendar dates are kept as the source sent them; the sentinel
	// "0000-00-00" and the empty string have already been normalized
	// to nil by the payload layer.
	OrderDate    *string `bun:"order_date"`
	ShipDate     *string `bun:"ship_date"`
	DeliveryDate *string `bun:"delivery_date"`

	TotalValue    float64  `bun:"total_value"`
	StatusID      string   `bun:"status_id"`
	DiscountValue *float64 `bun:"discount_value"`

	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// OrderItem is one line of an order, unique per (order_id, sku) so that
// redelivery updates the row in place.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID      int64  `bun:"id,pk,autoincrement"`
	OrderID int64  `bun:"order_id,notnull,unique:order_items_order_id_sku"`
	SKU     string `bun:"sku,notnull,unique:order_items_order_id_sku"`

	Quantity    int64   `bun:"quantity"`
	UnitValue   float64 `bun:"unit_value"`
	Description string  `bun:"description"`
}

// Delivery outcome values.
const (
	DeliveryReconciled = "reconciled"
	DeliveryIgnored    = "ignored"
	DeliveryFailed     = "failed"
)

// Delivery is a receipt for one processed webhook delivery. Receipts are
// operational bookkeeping and are written outside the reconcile unit of
// work, after its outcome is known.
type Delivery struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID         string    `bun:"id,pk"`
	Event      string    `bun:"event,notnull"`
	ExternalID *string   `bun:"external_id"`
	Status     string    `bun:"status,notnull"`
	Error      string    `bun:"error"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}
