package pricing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harborline/storefront/internal/domain/cart"
	"github.com/harborline/storefront/internal/domain/currency"
	"github.com/harborline/storefront/internal/domain/pricing"
	"github.com/harborline/storefront/internal/domain/product"
	"github.com/harborline/storefront/internal/domain/user"
	"github.com/harborline/storefront/internal/pkg/logging"
)

// Service is the read path: it loads raw catalog/cart data, takes one rate
// snapshot, and runs the pure resolver and aggregator over it. The same
// snapshot is used for every item in a call, so a sync landing mid-request
// cannot mix rate generations inside one response.
type Service struct {
	products product.Repository
	users    user.Repository
	rates    currency.Store
}

func NewService(products product.Repository, users user.Repository, rates currency.Store) *Service {
	return &Service{
		products: products,
		users:    users,
		rates:    rates,
	}
}

type ProductPrice struct {
	ProductID  string
	Prices     map[string]int64
	FullPrices map[string]int64
	Unresolved []string
}

func (s *Service) ProductPrice(ctx context.Context, productID string) (*ProductPrice, error) {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	codes, snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	prices, unresolved := pricing.Resolve(p.BasePrice, codes, snapshot)
	fullPrices, _ := pricing.Resolve(p.BaseFullPrice, codes, snapshot)

	if len(unresolved) > 0 {
		logging.FromContext(ctx).Warn("price_partially_resolved",
			zap.String("product_id", productID),
			zap.Strings("unresolved", unresolved),
		)
	}

	return &ProductPrice{
		ProductID:  p.ID,
		Prices:     prices,
		FullPrices: fullPrices,
		Unresolved: unresolved,
	}, nil
}

type CartLine struct {
	Item   cart.LineItem
	Prices map[string]int64
}

type CartView struct {
	Lines      []CartLine
	Totals     map[string]int64
	Incomplete []string
	Version    int64
}

func (s *Service) CartView(ctx context.Context, userID string) (*CartView, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes, snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, 0, len(u.Cart.Items))
	itemPrices := make([]map[string]int64, 0, len(u.Cart.Items))
	for _, li := range u.Cart.Items {
		p, err := s.products.Get(ctx, li.ProductID)
		if err != nil {
			return nil, fmt.Errorf("pricing: cart item %s: %w", li.ProductID, err)
		}
		prices, _ := pricing.Resolve(p.BasePrice, codes, snapshot)
		lines = append(lines, CartLine{Item: li, Prices: prices})
		itemPrices = append(itemPrices, prices)
	}

	totals, incomplete := pricing.Aggregate(itemPrices)
	return &CartView{
		Lines:      lines,
		Totals:     totals,
		Incomplete: incomplete,
		Version:    u.Cart.Version,
	}, nil
}

// snapshot returns the tracked codes and their rates as one consistent view.
func (s *Service) snapshot(ctx context.Context) ([]string, currency.Rates, error) {
	tracked, err := s.rates.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("pricing: list currencies: %w", err)
	}
	snapshot, err := s.rates.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("pricing: rate snapshot: %w", err)
	}
	codes := make([]string, 0, len(tracked))
	for _, c := range tracked {
		codes = append(codes, c.Code)
	}
	return codes, snapshot, nil
}
