package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttemptState is the lifecycle state of one gateway session.
type AttemptState string

const (
	AttemptStatePending   AttemptState = "pending"
	AttemptStateUnderpaid AttemptState = "underpaid"
	AttemptStateAccepted  AttemptState = "accepted"
	AttemptStateExpired   AttemptState = "expired"
	AttemptStateFailed    AttemptState = "failed"
)

// PaymentAttempt is one gateway session created for an order. An order may
// accumulate several across retries; at most one is open at a time.
// AmountExpected is denominated in Currency: the crypto amount for Bitcoin
// and Monero, the fiat total for PayPal. FiatAmount and ExchangeRate record
// the conversion used so later rate moves never change what is owed.
type PaymentAttempt struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	Gateway        PaymentMethod   `json:"gateway"`
	ProviderRef    string          `json:"provider_ref"`
	Address        string          `json:"address,omitempty"`
	RedirectURL    string          `json:"redirect_url,omitempty"`
	AmountExpected decimal.Decimal `json:"amount_expected"`
	Currency       string          `json:"currency"`
	FiatAmount     decimal.Decimal `json:"fiat_amount"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Confirmations  int             `json:"confirmations"`
	State          AttemptState    `json:"state"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// attemptTransitions: accepted, expired and failed are terminal. An
// underpaid attempt stays open for a top-up until its window closes.
var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptStatePending:   {AttemptStateAccepted, AttemptStateUnderpaid, AttemptStateExpired, AttemptStateFailed},
	AttemptStateUnderpaid: {AttemptStateAccepted, AttemptStateExpired},
	AttemptStateAccepted:  {},
	AttemptStateExpired:   {},
	AttemptStateFailed:    {},
}

// IsOpen reports whether the attempt still accepts webhook updates.
func (a *PaymentAttempt) IsOpen() bool {
	return a.State == AttemptStatePending || a.State == AttemptStateUnderpaid
}

// IsTerminal reports whether the attempt can change no further.
func (a *PaymentAttempt) IsTerminal() bool {
	return len(attemptTransitions[a.State]) == 0
}

// SetState moves the attempt to a new state. Terminal attempts are
// immutable; an invalid move returns a TransitionError.
func (a *PaymentAttempt) SetState(target AttemptState, at time.Time) error {
	if a.State == target {
		return nil
	}
	if !containsAttemptState(attemptTransitions[a.State], target) {
		return &TransitionError{From: string(a.State), To: string(target)}
	}
	a.State = target
	a.UpdatedAt = at
	return nil
}

// ObserveConfirmations applies an incoming confirmation count. The stored
// count is monotonic: a lower incoming count is ignored and reported as a
// regression for the caller to log. Providers resend the same transaction
// notification at every new confirmation, so re-application is routine.
func (a *PaymentAttempt) ObserveConfirmations(incoming int, at time.Time) (regressed bool) {
	if incoming < a.Confirmations {
		return true
	}
	if incoming > a.Confirmations {
		a.Confirmations = incoming
		a.UpdatedAt = at
	}
	return false
}

// ObserveAmount applies an incoming received amount, keeping the maximum
// observed. Partial payments only ever accumulate on-chain.
func (a *PaymentAttempt) ObserveAmount(incoming decimal.Decimal, at time.Time) {
	if incoming.GreaterThan(a.AmountReceived) {
		a.AmountReceived = incoming
		a.UpdatedAt = at
	}
}

// ExpiredAt reports whether the attempt's window has closed at the given
// instant. Accepted attempts never expire retroactively.
func (a *PaymentAttempt) ExpiredAt(now time.Time) bool {
	return a.IsOpen() && now.After(a.ExpiresAt)
}

func containsAttemptState(list []AttemptState, s AttemptState) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
