package cartops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborline/storefront/internal/domain/cart"
	"github.com/harborline/storefront/internal/domain/product"
	"github.com/harborline/storefront/internal/domain/user"
)

// maxRetries caps optimistic-concurrency retries for one mutation.
const maxRetries = 5

var ErrTooMuchContention = errors.New("cart: too much contention, retry")

// Service mutates carts with an optimistic version check: each attempt reads
// the cart, then applies the change conditioned on the version it read. A
// concurrent mutation (including a checkout snapshot) fails the attempt,
// which is retried against fresh state.
type Service struct {
	users    user.Repository
	products product.Repository

	now func() time.Time
}

func NewService(users user.Repository, products product.Repository) *Service {
	return &Service{
		users:    users,
		products: products,
		now:      time.Now,
	}
}

func (s *Service) AddItem(ctx context.Context, userID, productID string) error {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return err
	}

	item := cart.LineItem{ProductID: productID, AddedAt: s.now().UTC()}
	return s.withRetry(ctx, userID, func(version int64) error {
		return s.users.AddCartItem(ctx, userID, item, version)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.withRetry(ctx, userID, func(version int64) error {
		return s.users.RemoveCartItem(ctx, userID, productID, version)
	})
}

func (s *Service) withRetry(ctx context.Context, userID string, apply func(version int64) error) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		u, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}

		err = apply(u.Cart.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, user.ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: user %s", ErrTooMuchContention, userID)
}
