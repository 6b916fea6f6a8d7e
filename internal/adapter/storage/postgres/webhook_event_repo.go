package postgres

import (
	"context"
	"fmt"
	"time"

	"storefront-payments/internal/core/domain"
)

// WebhookEventRepo implements ports.WebhookEventRepository. The primary key
// on (provider, external_event_id) is what makes RecordIfNew atomic: two
// concurrent deliveries of the same event race on one INSERT and exactly
// one of them claims the row.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// RecordIfNew claims (provider, externalEventID). Returns true for the
// first claim, false for every redelivery.
func (r *WebhookEventRepo) RecordIfNew(ctx context.Context, provider domain.PaymentMethod, externalEventID string, receivedAt time.Time) (bool, error) {
	query := `INSERT INTO webhook_events (provider, external_event_id, received_at, outcome)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, external_event_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, provider, externalEventID, receivedAt, domain.WebhookOutcomeReceived)
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetOutcome records how processing of a claimed event ended.
func (r *WebhookEventRepo) SetOutcome(ctx context.Context, provider domain.PaymentMethod, externalEventID string, outcome string) error {
	query := `UPDATE webhook_events SET outcome = $1 WHERE provider = $2 AND external_event_id = $3`

	tag, err := r.pool.Exec(ctx, query, outcome, provider, externalEventID)
	if err != nil {
		return fmt.Errorf("set webhook outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event not found: %s/%s", provider, externalEventID)
	}
	return nil
}
