// Package webhook implements the inbound order-event endpoint with
// HMAC-SHA256 verification.
//
// # Security Model
//
// - HMAC-SHA256 signatures verified using crypto/subtle (constant-time comparison)
// - Verification runs over the raw request bytes before any parsing
// - Body size limits enforced to prevent DoS
// - No signature details leaked in error responses
// - Request logging excludes payload bodies
// - The shared secret is loaded from the environment at startup
//
// # Request Flow
//
//  1. HTTP POST arrives at /webhook/bling
//  2. Body size checked (413 if too large)
//  3. X-Bling-Signature-256 verified against the raw body (401 on mismatch)
//  4. Event class checked: anything outside "order." is acknowledged with
//     200 {"status":"ignored"} and never touches storage
//  5. Payload normalized and reconciled into the store in one transaction
//  6. 200 {"status":"ok"} on commit; 500 on any accepted-path failure so
//     the sender retries (the upsert pipeline makes redelivery safe)
package webhook
