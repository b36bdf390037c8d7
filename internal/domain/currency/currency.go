package currency

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrNotFound    = errors.New("currency: not found")
	ErrInvalidRate = errors.New("currency: rate must be a finite non-negative number")
)

// Currency is one tracked exchange rate. Rate expresses units of local
// currency per unit of the base currency, scaled by 100: a stored base
// amount times Rate divided by 100 yields the converted amount in the
// target currency's minor unit.
type Currency struct {
	Code      string
	Symbol    string
	Rate      float64
	UpdatedAt time.Time
}

// Rates is an immutable snapshot of known rates keyed by currency code.
// A missing key means the rate is unknown, never zero.
type Rates map[string]float64

func (r Rates) Clone() Rates {
	clone := make(Rates, len(r))
	for code, rate := range r {
		clone[code] = rate
	}
	return clone
}

// ValidRate reports whether a rate value may be stored.
func ValidRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 0
}

// Store holds the latest known rate per tracked currency code. It is
// written only by the rate synchronizer; all read paths take snapshots.
type Store interface {
	// List returns every tracked currency ordered by code.
	List(ctx context.Context) ([]Currency, error)

	// Snapshot returns the current rate table as an independent copy.
	// Tracked codes whose rate has never been initialized (zero
	// UpdatedAt) are omitted; their absence is how "no known rate"
	// surfaces to the resolver.
	Snapshot(ctx context.Context) (Rates, error)

	// ApplyRates overwrites rate and updatedAt for every tracked code
	// present in rates. Tracked codes absent from rates keep their
	// previous value; codes that are not tracked are ignored.
	ApplyRates(ctx context.Context, rates Rates, at time.Time) error

	// Upsert creates or replaces a tracked currency row.
	Upsert(ctx context.Context, c Currency) error
}
