package product

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("product: not found")

// Product carries the price-relevant fields the pricing core reads. The
// catalog collaborator owns the full schema; amounts are in the base
// currency's minor unit.
type Product struct {
	ID            string
	Name          string
	BasePrice     int64
	BaseFullPrice int64
}

type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	Save(ctx context.Context, p *Product) error
}
