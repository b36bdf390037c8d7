package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harborline/storefront/internal/domain/currency"
)

// CurrencyStore is the in-memory rate store. Reads hand out copies so a
// resolution call works against a stable snapshot while the synchronizer
// writes behind it.
type CurrencyStore struct {
	mu         sync.RWMutex
	currencies map[string]currency.Currency
}

func NewCurrencyStore() *CurrencyStore {
	return &CurrencyStore{
		currencies: make(map[string]currency.Currency),
	}
}

func (s *CurrencyStore) List(ctx context.Context) ([]currency.Currency, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]currency.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *CurrencyStore) Snapshot(ctx context.Context) (currency.Rates, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	rates := make(currency.Rates, len(s.currencies))
	for code, c := range s.currencies {
		// A tracked code whose rate was never initialized stays out of
		// the snapshot; resolution reports it as unresolved instead of
		// treating the zero value as a real rate.
		if c.UpdatedAt.IsZero() {
			continue
		}
		rates[code] = c.Rate
	}
	return rates, nil
}

func (s *CurrencyStore) ApplyRates(ctx context.Context, rates currency.Rates, at time.Time) error {
	_ = ctx
	for code, rate := range rates {
		if !currency.ValidRate(rate) {
			return fmt.Errorf("%w: %s", currency.ErrInvalidRate, code)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for code, c := range s.currencies {
		rate, ok := rates[code]
		if !ok {
			continue // stale-but-available
		}
		c.Rate = rate
		c.UpdatedAt = at
		s.currencies[code] = c
	}
	return nil
}

func (s *CurrencyStore) Upsert(ctx context.Context, c currency.Currency) error {
	_ = ctx
	if c.Code == "" {
		return fmt.Errorf("currency store: code is required")
	}
	if !currency.ValidRate(c.Rate) {
		return fmt.Errorf("%w: %s", currency.ErrInvalidRate, c.Code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currencies[c.Code] = c
	return nil
}
