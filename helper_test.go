package cointax

import (
	"context"
	"testing"
	"time"

	"github.com/etnz/cointax/date"
	"github.com/shopspring/decimal"
)

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// day0 is the first day of the test ledgers.
var day0 = time.Date(2023, time.January, 2, 12, 0, 0, 0, time.UTC)

// day returns the time n days after day0.
func day(n int) time.Time { return day0.AddDate(0, 0, n) }

// fiat returns a valid fiat value.
func fiat(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

// operation builds an operation of kind in depot.
func operation(id string, t time.Time, depot Depot, asset Asset, q float64, kind OperationKind) Operation {
	return Operation{ID: id, Time: t, Depot: depot, Asset: asset, Quantity: Q(q), Kind: kind}
}

// valued returns op with a fiat value.
func valued(op Operation, v float64) Operation {
	op.FiatValue = fiat(v)
	return op
}

// linked returns op referencing ref.
func linked(op Operation, ref string) Operation {
	op.Ref = ref
	return op
}

// newTestLedger appends ops to a new ledger, failing the test on error.
func newTestLedger(t *testing.T, ops ...Operation) *Ledger {
	t.Helper()
	l := NewLedger()
	if err := l.Append(ops...); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Check(); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	return l
}

// evaluate runs Evaluate with a cache only resolver.
func evaluate(t *testing.T, l *Ledger, rules *RuleSet, cache *PriceCache) *Evaluation {
	t.Helper()
	if cache == nil {
		cache = NewPriceCache()
	}
	ev, err := Evaluate(context.Background(), l, rules, NewPriceResolver(rules.Fiat, cache), Options{Parallelism: 2})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return ev
}

// quotes fills a cache with prices of asset, given as day offsets from day0.
func quotes(cache *PriceCache, asset Asset, prices map[int]float64) *PriceCache {
	for n, p := range prices {
		cache.Set(asset, date.Of(day(n)), decimal.NewFromFloat(p))
	}
	return cache
}

func assertMoney(t *testing.T, name string, got, want Money) {
	t.Helper()
	if !got.Decimal().Equal(want.Decimal()) {
		t.Errorf("%s = %v, want %v", name, got.Decimal(), want.Decimal())
	}
}
