package domain

import "time"

// Webhook processing outcomes recorded against the ledger entry. These are
// for audit queries; deduplication relies only on the unique event id.
const (
	WebhookOutcomeReceived         = "received"
	WebhookOutcomeApplied          = "applied"
	WebhookOutcomeDuplicate        = "duplicate"
	WebhookOutcomeIgnored          = "ignored"
	WebhookOutcomeUnknownReference = "unknown_reference"
)

// WebhookEvent is one idempotency-ledger entry. (Provider, ExternalEventID)
// is unique; the first insert wins and every later delivery of the same id
// is acknowledged without reapplying state. Entries are retained for at
// least 90 days, longer than any provider's retry window.
type WebhookEvent struct {
	Provider        PaymentMethod `json:"provider"`
	ExternalEventID string        `json:"external_event_id"`
	ReceivedAt      time.Time     `json:"received_at"`
	Outcome         string        `json:"outcome"`
}
