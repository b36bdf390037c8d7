package user

import (
	"context"
	"errors"

	"github.com/harborline/storefront/internal/domain/cart"
)

var (
	ErrNotFound        = errors.New("user: not found")
	ErrVersionConflict = errors.New("user: cart version conflict")
	ErrItemNotFound    = errors.New("user: cart item not found")
)

type User struct {
	ID       string
	Email    string
	Cart     cart.Cart
	OrderIDs []string
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Cart = u.Cart.Clone()
	if len(u.OrderIDs) > 0 {
		clone.OrderIDs = append([]string(nil), u.OrderIDs...)
	}
	return &clone
}

// Repository is the user-store collaborator boundary. Cart mutations take
// the version the caller read; a stale version fails with
// ErrVersionConflict and must be retried against fresh state.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error

	AddCartItem(ctx context.Context, userID string, item cart.LineItem, version int64) error
	RemoveCartItem(ctx context.Context, userID, productID string, version int64) error

	// Settle clears the settled portion of the cart and records the order:
	// each given line is matched by product and AddedAt and removed, every
	// other line is kept untouched, and orderID is appended to the order
	// history if not already present. Lines no longer in the cart are
	// skipped, so Settle is idempotent and safe to re-run for the same
	// order.
	Settle(ctx context.Context, userID, orderID string, lines []cart.LineItem) error
}
