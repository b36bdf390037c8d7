package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/harborline/storefront/internal/domain/cart"
	domain "github.com/harborline/storefront/internal/domain/user"
)

type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	_ = ctx
	if email == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	_ = ctx
	if u == nil || u.ID == "" {
		return fmt.Errorf("user repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.users[u.ID]; ok && prev.Email != u.Email {
		delete(r.byEmail, prev.Email)
	}
	r.users[u.ID] = u.Clone()
	if u.Email != "" {
		r.byEmail[u.Email] = u.ID
	}
	return nil
}

func (r *UserRepository) AddCartItem(ctx context.Context, userID string, item cart.LineItem, version int64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Cart.Version != version {
		return domain.ErrVersionConflict
	}

	u.Cart.Items = append(u.Cart.Items, item)
	u.Cart.Version++
	return nil
}

func (r *UserRepository) RemoveCartItem(ctx context.Context, userID, productID string, version int64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Cart.Version != version {
		return domain.ErrVersionConflict
	}

	idx := slices.IndexFunc(u.Cart.Items, func(li cart.LineItem) bool {
		return li.ProductID == productID
	})
	if idx < 0 {
		return domain.ErrItemNotFound
	}

	u.Cart.Items = append(u.Cart.Items[:idx], u.Cart.Items[idx+1:]...)
	u.Cart.Version++
	return nil
}

// Settle removes exactly the given cart lines, matched by product and
// AddedAt, and appends orderID to the order history once. Lines added after
// the caller's snapshot have a different identity and are never touched.
// Re-running with lines already gone is a no-op, which is what makes the
// post-persist cart clear safe to retry from a replayed event.
func (r *UserRepository) Settle(ctx context.Context, userID, orderID string, lines []cart.LineItem) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.ErrNotFound
	}

	pending := append([]cart.LineItem(nil), lines...)
	kept := u.Cart.Items[:0]
	removed := false
	for _, li := range u.Cart.Items {
		idx := slices.IndexFunc(pending, func(l cart.LineItem) bool {
			return l.ProductID == li.ProductID && l.AddedAt.Equal(li.AddedAt)
		})
		if idx >= 0 {
			pending = slices.Delete(pending, idx, idx+1)
			removed = true
			continue
		}
		kept = append(kept, li)
	}
	u.Cart.Items = kept
	if removed {
		u.Cart.Version++
	}

	if !slices.Contains(u.OrderIDs, orderID) {
		u.OrderIDs = append(u.OrderIDs, orderID)
	}
	return nil
}
