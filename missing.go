package cointax

import (
	"slices"

	"github.com/etnz/cointax/date"
)

// MissingPrices lists the prices an evaluation of ledger under rules will look for and
// that cache does not hold: operations with no value known at source, and the year
// closes of every asset held.
//
// The result is sorted by asset then day.
func MissingPrices(ledger *Ledger, rules *RuleSet, cache *PriceCache) []PriceRequest {
	set := make(map[PriceRequest]struct{})
	need := func(a Asset, day date.Date) {
		if a == rules.Fiat {
			return
		}
		if _, ok := cache.Get(a, day); ok {
			return
		}
		set[PriceRequest{a, day}] = struct{}{}
	}

	held := make(map[Asset]int) // first year an asset is seen
	for op := range ledger.Operations() {
		if op.Asset == rules.Fiat {
			continue
		}
		if _, ok := held[op.Asset]; !ok {
			held[op.Asset] = op.Time.Year()
		}
		if !needsPrice(ledger, rules, op) {
			continue
		}
		need(op.Asset, date.Of(op.Time))
	}
	for a, from := range held {
		for _, y := range ledger.Span().Years() {
			if y >= from {
				need(a, date.Of(date.YearClose(y)))
			}
		}
	}

	requests := make([]PriceRequest, 0, len(set))
	for r := range set {
		requests = append(requests, r)
	}
	slices.SortFunc(requests, comparePriceRequests)
	return requests
}

// needsPrice reports whether the engine prices op at its own time.
func needsPrice(ledger *Ledger, rules *RuleSet, op Operation) bool {
	if op.FiatValue.Valid {
		return false
	}
	exact := func(o Operation) bool { return o.FiatValue.Valid || o.Asset == rules.Fiat }
	switch op.Kind {
	case Buy, Sell, MarginSettlementDelivery:
		if c, ok := ledger.CounterLeg(op); ok && exact(c) {
			return false
		}
		return true
	case Deposit:
		c, ok := ledger.CounterLeg(op)
		return rules.WithdrawalIsDisposal || !ok || c.Kind != Withdrawal
	case Withdrawal:
		return rules.WithdrawalIsDisposal
	default:
		return true
	}
}
