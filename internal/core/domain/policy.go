package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Confirmation thresholds and the underpayment tolerance are business
// policy, fixed at build time. They are deliberately not configuration.
const (
	BitcoinConfirmationsRequired = 2
	MoneroConfirmationsRequired  = 10
)

// ToleranceFraction is the allowed underpayment margin still treated as a
// full payment: 1%.
var ToleranceFraction = decimal.NewFromFloat(0.01)

// PolicyDecision is the outcome of evaluating a payment attempt.
type PolicyDecision string

const (
	DecisionAccepted            PolicyDecision = "accepted"
	DecisionPendingConfirmation PolicyDecision = "pending_confirmation"
	DecisionUnderpaid           PolicyDecision = "underpaid"
	DecisionExpired             PolicyDecision = "expired"
)

// PolicyInput carries everything EvaluatePayment needs. The function is
// pure so the same webhook replayed any number of times evaluates to the
// same decision for the same stored state.
type PolicyInput struct {
	Confirmations         int
	ConfirmationsRequired int
	AmountReceived        decimal.Decimal
	AmountExpected        decimal.Decimal
	Tolerance             decimal.Decimal
	ExpiresAt             time.Time
	Now                   time.Time
}

// EvaluatePayment is the confirmation-threshold decision table, evaluated
// in strict order: expiry wins, then underpayment, then the confirmation
// count. Overpayment never blocks acceptance; what to do with the excess is
// a refund-workflow concern.
func EvaluatePayment(in PolicyInput) PolicyDecision {
	if in.Now.After(in.ExpiresAt) {
		return DecisionExpired
	}
	floor := in.AmountExpected.Mul(decimal.NewFromInt(1).Sub(in.Tolerance))
	if in.AmountReceived.LessThan(floor) {
		return DecisionUnderpaid
	}
	if in.Confirmations < in.ConfirmationsRequired {
		return DecisionPendingConfirmation
	}
	return DecisionAccepted
}

// ConfirmationsRequired returns the confirmation threshold for a payment
// method. Synchronous methods settle in a single round-trip.
func ConfirmationsRequired(m PaymentMethod) int {
	switch m {
	case PaymentMethodBitcoin:
		return BitcoinConfirmationsRequired
	case PaymentMethodMonero:
		return MoneroConfirmationsRequired
	default:
		return 0
	}
}
