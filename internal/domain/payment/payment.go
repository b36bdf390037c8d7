package payment

import "errors"

var (
	ErrBadSignature   = errors.New("payment: webhook signature mismatch")
	ErrMalformedEvent = errors.New("payment: malformed event payload")
)

// TypeChargeSucceeded is the only event type that triggers settlement; all
// other types are acknowledged and ignored.
const TypeChargeSucceeded = "charge.succeeded"

// Event is a verified payment confirmation from the external gateway.
// ExternalID is the idempotency key; Amount is in Currency's minor unit.
type Event struct {
	ExternalID string
	Type       string
	Amount     int64
	Currency   string
	PayerEmail string
	Raw        []byte
}

// Gateway abstracts the payment provider's signing scheme and wire format.
// ParseEvent verifies the signature over the raw payload before decoding;
// an unverifiable payload fails with ErrBadSignature and is never inspected
// further.
type Gateway interface {
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// Outcome is the terminal state of processing one delivered event.
type Outcome string

const (
	// OutcomeRejected is a signature mismatch; no side effects.
	OutcomeRejected Outcome = "rejected"
	// OutcomeIgnored is an unrecognized event type; acknowledged, no side effects.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeAlreadyProcessed is a duplicate delivery absorbed by the
	// idempotency key.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeUnfulfillable means no user matches the payer; acknowledged so
	// the gateway stops redelivering, but surfaced as an operator anomaly.
	OutcomeUnfulfillable Outcome = "unfulfillable"
	// OutcomeFinalized means an order was persisted and the cart cleared.
	OutcomeFinalized Outcome = "finalized"
)
