package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/harborline/storefront/internal/domain/order"
)

// OrderRepository stores settlement records and enforces the uniqueness
// constraint on the source event id, so a second order for the same gateway
// event is rejected at persistence time regardless of interleaving.
type OrderRepository struct {
	mu            sync.RWMutex
	orders        map[string]*domain.Order
	bySourceEvent map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:        make(map[string]*domain.Order),
		bySourceEvent: make(map[string]string),
	}
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if o.SourceEventID == "" {
		return fmt.Errorf("order repository: source event id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySourceEvent[o.SourceEventID]; exists {
		return domain.ErrDuplicateEvent
	}
	if _, exists := r.orders[o.ID]; exists {
		return fmt.Errorf("order repository: id %s already exists", o.ID)
	}

	r.orders[o.ID] = o.Clone()
	r.bySourceEvent[o.SourceEventID] = o.ID
	return nil
}

func (r *OrderRepository) FindBySourceEvent(ctx context.Context, sourceEventID string) (*domain.Order, error) {
	_ = ctx
	if sourceEventID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySourceEvent[sourceEventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.orders {
		if o.OwnerID == ownerID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
