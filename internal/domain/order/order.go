package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("order: not found")
	ErrDuplicateEvent = errors.New("order: source event already settled")
)

// Item is a cart line frozen at settlement time. PriceAtPurchase is the
// resolved amount in the order currency's minor unit. AddedAt is the cart
// line's own timestamp; together with ProductID it identifies the exact
// line this order settled, which is what the derived cart clear removes.
type Item struct {
	ProductID       string
	AddedAt         time.Time
	PriceAtPurchase int64
}

// Order is an immutable settlement record. Amount and Currency come from the
// payment event (what was actually charged), never re-derived from live
// prices. SourceEventID is the idempotency key: at most one Order ever
// exists per gateway event.
type Order struct {
	ID            string
	OwnerID       string
	Items         []Item
	Amount        int64
	Currency      string
	SourceEventID string
	CreatedAt     time.Time
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if len(o.Items) > 0 {
		clone.Items = append([]Item(nil), o.Items...)
	}
	return &clone
}

type Repository interface {
	// Create persists a new order. A second order carrying an already
	// stored SourceEventID fails with ErrDuplicateEvent.
	Create(ctx context.Context, o *Order) error

	FindBySourceEvent(ctx context.Context, sourceEventID string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Order, error)
}
