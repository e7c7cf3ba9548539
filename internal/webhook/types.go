package webhook

import (
	"context"

	"blinghook/internal/store"
)

// Reconciler is the storage collaborator the dispatcher drives. The
// concrete implementation lives in internal/store; tests substitute a
// mock.
type Reconciler interface {
	// Reconcile applies one normalized order event atomically.
	Reconcile(ctx context.Context, order store.Order, items []store.OrderItem) error

	// RecordDelivery writes a processing receipt. Failures are logged by
	// the caller, never surfaced to the sender.
	RecordDelivery(ctx context.Context, d store.Delivery) error

	// Ping reports store connectivity for the health endpoint.
	Ping(ctx context.Context) error
}

// StatusResponse is the JSON body for accepted and ignored deliveries.
type StatusResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
}

// ErrorResponse is the JSON body for rejected or failed deliveries. It
// carries a short message only; internal detail stays in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SignatureHeader carries the HMAC-SHA256 signature of the raw body.
const SignatureHeader = "X-Bling-Signature-256"

// WebhookPath is the single inbound endpoint.
const WebhookPath = "/webhook/bling"
