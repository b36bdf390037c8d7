package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/harborline/storefront/internal/domain/currency"
)

var hundred = decimal.NewFromInt(100)

// Resolve converts a base-currency amount (minor units) into every requested
// currency for which the snapshot holds a rate:
//
//	prices[code] = trunc(baseAmount * rate / 100)
//
// The intermediate product is computed with exact decimal arithmetic and the
// final minor-unit amount is truncated toward zero; the same rule applies to
// every code, so output is deterministic for a given snapshot. Codes without
// a usable rate are returned in unresolved and omitted from prices. A missing
// rate is data, not a fault: Resolve never fails.
func Resolve(baseAmount int64, codes []string, rates currency.Rates) (map[string]int64, []string) {
	prices := make(map[string]int64, len(codes))
	var unresolved []string

	base := decimal.NewFromInt(baseAmount)
	for _, code := range codes {
		rate, ok := rates[code]
		if !ok || !currency.ValidRate(rate) {
			unresolved = append(unresolved, code)
			continue
		}
		prices[code] = base.Mul(decimal.NewFromFloat(rate)).Div(hundred).IntPart()
	}
	sort.Strings(unresolved)
	return prices, unresolved
}
