package pricing

import "sort"

// Aggregate reduces per-item price maps into cart totals. A currency code
// contributes to totals only when every item carries a price for it; codes
// present on some items but not all are excluded and reported in incomplete
// instead of producing a partial sum. An empty item list yields empty totals
// and empty incomplete.
func Aggregate(items []map[string]int64) (map[string]int64, []string) {
	totals := make(map[string]int64)
	if len(items) == 0 {
		return totals, nil
	}

	counts := make(map[string]int)
	for _, prices := range items {
		for code, amount := range prices {
			counts[code]++
			totals[code] += amount
		}
	}

	var incomplete []string
	for code, n := range counts {
		if n != len(items) {
			delete(totals, code)
			incomplete = append(incomplete, code)
		}
	}
	sort.Strings(incomplete)
	return totals, incomplete
}
