package cointax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/etnz/cointax/date"
	"github.com/shopspring/decimal"
)

// closeQuote sets the price of asset at the close of year.
func closeQuote(cache *PriceCache, asset Asset, year int, price float64) *PriceCache {
	cache.Set(asset, date.New(year, time.December, 31), decimal.NewFromFloat(price))
	return cache
}

func withPolicy(p ConsumptionPolicy) *RuleSet {
	rs := Germany()
	rs.Policy = p
	return rs
}

func TestEvaluate_ConsumptionPolicy(t *testing.T) {
	testCases := []struct {
		policy         ConsumptionPolicy
		wantCost       Money
		wantGain       Money
		wantUnrealized Money
	}{
		{OldestFirst, EUR(10000), EUR(15000), EUR(10000)},
		{NewestFirst, EUR(20000), EUR(5000), EUR(20000)},
	}
	for _, tc := range testCases {
		t.Run(tc.policy.String(), func(t *testing.T) {
			l := newTestLedger(t,
				valued(operation("b1", day(0), "kraken", "BTC", 1, Buy), 10000),
				valued(operation("b2", day(10), "kraken", "BTC", 1, Buy), 20000),
				valued(operation("s1", day(20), "kraken", "BTC", -1, Sell), 25000),
			)
			ev := evaluate(t, l, withPolicy(tc.policy), closeQuote(NewPriceCache(), "BTC", 2023, 30000))

			if len(ev.Disposals) != 1 {
				t.Fatalf("Evaluate() = %d disposals, want 1", len(ev.Disposals))
			}
			d := ev.Disposals[0]
			assertMoney(t, "Cost", d.Cost, tc.wantCost)
			assertMoney(t, "Gain()", d.Gain(), tc.wantGain)

			if len(ev.Records) != 1 || ev.Records[0].Category != PrivateSaleTaxable {
				t.Fatalf("Evaluate() records = %v, want a single private sale", ev.Records)
			}
			s, ok := ev.Summary("kraken", 2023)
			if !ok {
				t.Fatal("Summary(kraken, 2023) not found")
			}
			if s.PrivateSaleExempt {
				t.Errorf("PrivateSaleExempt = true, want false")
			}
			assertMoney(t, "TaxablePrivateSales", s.TaxablePrivateSales, tc.wantGain)
			assertMoney(t, "Unrealized", s.Unrealized, tc.wantUnrealized)
			if s.UnrealizedIncomplete {
				t.Errorf("UnrealizedIncomplete = true, want false")
			}
		})
	}
}

func TestEvaluate_IncomeLotCostBasis(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("i1", day(0), "nexo", "BTC", 0.01, LendingInterest), 300),
		valued(operation("s1", day(30), "nexo", "BTC", -0.01, Sell), 350),
	)
	ev := evaluate(t, l, Germany(), nil)

	if len(ev.Records) != 2 {
		t.Fatalf("Evaluate() = %d records, want 2", len(ev.Records))
	}
	income, sale := ev.Records[0], ev.Records[1]
	if income.Category != OtherIncome {
		t.Errorf("income category = %v, want %v", income.Category, OtherIncome)
	}
	assertMoney(t, "income value", income.Value, EUR(300))
	assertMoney(t, "sale cost", sale.Cost, EUR(300))
	assertMoney(t, "sale gain", sale.Value, EUR(50))

	s, _ := ev.Summary("nexo", 2023)
	if s.OtherIncomeExempt {
		t.Errorf("OtherIncomeExempt = true, want false for 300 over 256")
	}
	assertMoney(t, "TaxableOtherIncome", s.TaxableOtherIncome, EUR(300))
	if !s.PrivateSaleExempt {
		t.Errorf("PrivateSaleExempt = false, want true for 50")
	}
}

func TestEvaluate_IncomeLotsAtZeroCost(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("i1", day(0), "nexo", "BTC", 0.01, StakingReward), 300),
		valued(operation("s1", day(30), "nexo", "BTC", -0.01, Sell), 350),
	)
	rs := Germany()
	rs.IncomeLotsAtZeroCost = true
	ev := evaluate(t, l, rs, nil)
	assertMoney(t, "sale cost", ev.Records[1].Cost, EUR(0))
	assertMoney(t, "sale gain", ev.Records[1].Value, EUR(350))
}

func TestEvaluate_HoldingPeriodBoundary(t *testing.T) {
	oneYear := day0.AddDate(1, 0, 0)
	testCases := []struct {
		name string
		sell time.Time
		want TaxCategory
	}{
		{"exactly one year", oneYear, PrivateSaleTaxable},
		{"one second later", oneYear.Add(time.Second), PrivateSaleTaxFree},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLedger(t,
				valued(operation("b", day0, "kraken", "BTC", 1, Buy), 1000),
				valued(operation("s", tc.sell, "kraken", "BTC", -1, Sell), 5000),
			)
			ev := evaluate(t, l, Germany(), closeQuote(NewPriceCache(), "BTC", 2023, 3000))
			if len(ev.Records) != 1 {
				t.Fatalf("Evaluate() = %d records, want 1", len(ev.Records))
			}
			if got := ev.Records[0].Category; got != tc.want {
				t.Errorf("Category = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_PrivateSaleThreshold(t *testing.T) {
	testCases := []struct {
		name       string
		proceeds   float64
		wantExempt bool
		wantTax    Money
	}{
		{"at the threshold", 1600, true, EUR(0)},
		{"one cent over", 1600.01, false, EUR(600.01)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLedger(t,
				valued(operation("b", day(0), "kraken", "BTC", 1, Buy), 1000),
				valued(operation("s", day(5), "kraken", "BTC", -1, Sell), tc.proceeds),
			)
			ev := evaluate(t, l, Germany(), nil)
			s, _ := ev.Summary("kraken", 2023)
			if s.PrivateSaleExempt != tc.wantExempt {
				t.Errorf("PrivateSaleExempt = %v, want %v", s.PrivateSaleExempt, tc.wantExempt)
			}
			assertMoney(t, "TaxablePrivateSales", s.TaxablePrivateSales, tc.wantTax)
		})
	}
}

func TestEvaluate_ZeroGainRoundTrip(t *testing.T) {
	for _, p := range []ConsumptionPolicy{OldestFirst, NewestFirst} {
		l := newTestLedger(t,
			valued(operation("b", day(0), "kraken", "ETH", 2, Buy), 3000),
			valued(operation("s", day(1), "kraken", "ETH", -2, Sell), 3000),
		)
		ev := evaluate(t, l, withPolicy(p), nil)
		for _, d := range ev.Disposals {
			if !d.Gain().IsZero() {
				t.Errorf("%v: Gain() = %v, want 0", p, d.Gain())
			}
		}
	}
}

func TestEvaluate_CounterLegValue(t *testing.T) {
	l := newTestLedger(t,
		operation("b", day(0), "kraken", "BTC", 1, Buy),
		linked(operation("b-eur", day(0), "kraken", "EUR", -20000, Sell), "b"),
		operation("s", day(3), "kraken", "BTC", -1, Sell),
		linked(operation("s-eth", day(3), "kraken", "ETH", 10, Buy), "s"),
	)
	// Neither leg of the BTC to ETH swap has a value at source: the sale needs a
	// BTC quote, which is missing, the ETH lot is priced.
	cache := quotes(NewPriceCache(), "ETH", map[int]float64{3: 2100})
	closeQuote(cache, "ETH", 2023, 2000)
	ev := evaluate(t, l, Germany(), cache)

	if len(ev.Disposals) != 1 {
		t.Fatalf("Evaluate() = %d disposals, want 1", len(ev.Disposals))
	}
	assertMoney(t, "Cost", ev.Disposals[0].Cost, EUR(20000))
	if ev.Disposals[0].Status != ValuationIncomplete {
		t.Errorf("Status = %v, want %v", ev.Disposals[0].Status, ValuationIncomplete)
	}
	s, _ := ev.Summary("kraken", 2023)
	assertMoney(t, "Unrealized", s.Unrealized, EUR(-1000))
}

func TestEvaluate_Fees(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("b", day(0), "kraken", "BTC", 1, Buy), 10000),
		linked(operation("bf", day(0), "kraken", "EUR", -10, FeeOnly), "b"),
		valued(operation("s", day(5), "kraken", "BTC", -0.5, Sell), 6000),
		operation("sf", day(5), "kraken", "EUR", -20, FeeOnly), // same time as the sale
		operation("custody", day(6), "kraken", "EUR", -4, FeeOnly),
	)
	ev := evaluate(t, l, Germany(), closeQuote(NewPriceCache(), "BTC", 2023, 10000))

	if len(ev.Disposals) != 1 {
		t.Fatalf("Evaluate() = %d disposals, want 1", len(ev.Disposals))
	}
	d := ev.Disposals[0]
	assertMoney(t, "Cost", d.Cost, EUR(5005))
	assertMoney(t, "Fee", d.Fee, EUR(20))
	assertMoney(t, "Gain()", d.Gain(), EUR(975))

	if len(ev.Records) != 2 {
		t.Fatalf("Evaluate() = %d records, want the sale and the custody fee", len(ev.Records))
	}
	fee := ev.Records[1]
	if fee.OperationID != "custody" || fee.Category != PrivateSaleTaxable {
		t.Errorf("fee record = %s %v, want custody %v", fee.OperationID, fee.Category, PrivateSaleTaxable)
	}
	assertMoney(t, "fee value", fee.Value, EUR(-4))

	s, _ := ev.Summary("kraken", 2023)
	assertMoney(t, "private sales", s.Total(PrivateSaleTaxable).Value, EUR(971))
	assertMoney(t, "Unrealized", s.Unrealized, EUR(-5))
}

func TestEvaluate_CryptoFeeBuffer(t *testing.T) {
	t.Run("paid by a later lot", func(t *testing.T) {
		l := newTestLedger(t,
			operation("f", day(0), "binance", "BNB", -0.1, FeeOnly),
			valued(operation("b", day(1), "binance", "BNB", 1, Buy), 300),
			valued(operation("s", day(2), "binance", "BNB", -0.9, Sell), 270),
		)
		cache := quotes(NewPriceCache(), "BNB", map[int]float64{0: 250})
		ev := evaluate(t, l, Germany(), cache)
		if len(ev.Failures) != 0 {
			t.Fatalf("Evaluate() failures = %v, want none", ev.Failures)
		}
		if len(ev.Records) != 2 {
			t.Fatalf("Evaluate() = %d records, want 2", len(ev.Records))
		}
		assertMoney(t, "fee value", ev.Records[0].Value, EUR(-25))
		assertMoney(t, "sale cost", ev.Records[1].Cost, EUR(270))
	})

	t.Run("never paid", func(t *testing.T) {
		l := newTestLedger(t,
			operation("f", day(0), "binance", "BNB", -0.1, FeeOnly),
		)
		cache := quotes(NewPriceCache(), "BNB", map[int]float64{0: 250})
		ev := evaluate(t, l, Germany(), cache)
		if len(ev.Failures) != 1 || !errors.Is(ev.Failures[0].Err, ErrInsufficientInventory) {
			t.Fatalf("Evaluate() failures = %v, want insufficient inventory", ev.Failures)
		}
		if len(ev.Records) != 0 {
			t.Errorf("Evaluate() = %d records, want none for a failed depot", len(ev.Records))
		}
	})
}

func TestEvaluate_InsufficientInventoryIsolatesDepot(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("ba", day(0), "a", "BTC", 1, Buy), 100),
		valued(operation("sa", day(1), "a", "BTC", -2, Sell), 400),
		valued(operation("bb", day(0), "b", "BTC", 1, Buy), 100),
		valued(operation("sb", day(1), "b", "BTC", -1, Sell), 200),
	)
	ev := evaluate(t, l, Germany(), nil)

	if len(ev.Failures) != 1 || ev.Failures[0].Depot != "a" {
		t.Fatalf("Evaluate() failures = %v, want depot a", ev.Failures)
	}
	var ie *InsufficientInventoryError
	if !errors.As(ev.Failures[0].Err, &ie) || ie.Op == nil || ie.Op.ID != "sa" {
		t.Errorf("failure = %v, want an InsufficientInventoryError on sa", ev.Failures[0].Err)
	} else if !ie.Held.Equal(Q(1)) || !ie.Wanted.Equal(Q(2)) {
		t.Errorf("failure held %v wanted %v, want 1 and 2", ie.Held, ie.Wanted)
	}
	for _, r := range ev.Records {
		if r.Depot == "a" {
			t.Errorf("record %s of failed depot a reported", r.OperationID)
		}
	}
	if _, ok := ev.Summary("a", 2023); ok {
		t.Errorf("Summary(a, 2023) found, want none for a failed depot")
	}
	s, ok := ev.Summary("b", 2023)
	if !ok {
		t.Fatal("Summary(b, 2023) not found")
	}
	assertMoney(t, "private sales of b", s.Total(PrivateSaleTaxable).Value, EUR(100))
}

func TestEvaluate_TransferKeepsAcquisition(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("b", day(0), "kraken", "BTC", 1, Buy), 10000),
		operation("w", day(100), "kraken", "BTC", -1, Withdrawal),
		linked(operation("d", day(100).Add(time.Hour), "cold", "BTC", 1, Deposit), "w"),
		valued(operation("s", day(400), "cold", "BTC", -1, Sell), 30000),
	)
	ev := evaluate(t, l, Germany(), closeQuote(NewPriceCache(), "BTC", 2023, 25000))

	if len(ev.Disposals) != 1 {
		t.Fatalf("Evaluate() = %d disposals, want 1", len(ev.Disposals))
	}
	d := ev.Disposals[0]
	if !d.Acquired.Equal(day(0)) || d.Depot != "cold" || d.LotID != "b" {
		t.Errorf("disposal = lot %s acquired %v in %s, want lot b acquired %v in cold", d.LotID, d.Acquired, d.Depot, day(0))
	}
	assertMoney(t, "Cost", d.Cost, EUR(10000))
	if ev.Records[0].Category != PrivateSaleTaxFree {
		t.Errorf("Category = %v, want %v", ev.Records[0].Category, PrivateSaleTaxFree)
	}

	// the lot is held by cold at the close of 2023, not by kraken
	kraken, _ := ev.Summary("kraken", 2023)
	cold, _ := ev.Summary("cold", 2023)
	assertMoney(t, "kraken Unrealized", kraken.Unrealized, EUR(0))
	assertMoney(t, "cold Unrealized", cold.Unrealized, EUR(15000))
}

func TestEvaluate_TransferFromFailedDepot(t *testing.T) {
	l := newTestLedger(t,
		operation("w", day(1), "kraken", "BTC", -1, Withdrawal),
		linked(operation("d", day(2), "cold", "BTC", 1, Deposit), "w"),
	)
	ev := evaluate(t, l, Germany(), nil)
	if len(ev.Failures) != 2 {
		t.Fatalf("Evaluate() failures = %v, want kraken and cold", ev.Failures)
	}
	if ev.Failures[0].Depot != "cold" || ev.Failures[1].Depot != "kraken" {
		t.Errorf("Evaluate() failures = %v, want cold then kraken", ev.Failures)
	}
}

func TestEvaluate_Merged(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("ba", day(0), "a", "BTC", 1, Buy), 100),
		valued(operation("bb", day(10), "b", "BTC", 1, Buy), 200),
		valued(operation("sa", day(20), "a", "BTC", -1, Sell), 300),
	)
	testCases := []struct {
		mode      Mode
		wantCost  Money
		wantDepot Depot
	}{
		{PerDepot, EUR(100), "a"},
		{Merged, EUR(200), AllDepots},
	}
	for _, tc := range testCases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			rs := withPolicy(NewestFirst)
			rs.Mode = tc.mode
			ev := evaluate(t, l, rs, closeQuote(NewPriceCache(), "BTC", 2023, 300))
			assertMoney(t, "Cost", ev.Disposals[0].Cost, tc.wantCost)
			if _, ok := ev.Summary(tc.wantDepot, 2023); !ok {
				t.Errorf("Summary(%s, 2023) not found", tc.wantDepot)
			}
		})
	}
}

func TestEvaluate_CapitalLossCarryForward(t *testing.T) {
	l := newTestLedger(t,
		operation("loss", day(10), "bitmex", "EUR", -30000, MarginLossPayout),
		operation("gain", day(400), "bitmex", "EUR", 50000, MarginGainPayout),
	)
	rs := Germany()
	rs.CapitalLossCap = decimal.NewNullDecimal(decimal.NewFromInt(20000))
	ev := evaluate(t, l, rs, nil)

	y1, ok := ev.Summary("bitmex", 2023)
	if !ok {
		t.Fatal("Summary(bitmex, 2023) not found")
	}
	assertMoney(t, "2023 CapitalLosses", y1.CapitalLosses, EUR(30000))
	assertMoney(t, "2023 TaxableCapitalIncome", y1.TaxableCapitalIncome, EUR(0))
	assertMoney(t, "2023 CapitalLossCarriedForward", y1.CapitalLossCarriedForward, EUR(30000))

	y2, ok := ev.Summary("bitmex", 2024)
	if !ok {
		t.Fatal("Summary(bitmex, 2024) not found")
	}
	assertMoney(t, "2024 CapitalLossCarriedIn", y2.CapitalLossCarriedIn, EUR(30000))
	assertMoney(t, "2024 CapitalLossOffset", y2.CapitalLossOffset, EUR(20000))
	assertMoney(t, "2024 TaxableCapitalIncome", y2.TaxableCapitalIncome, EUR(30000))
	assertMoney(t, "2024 CapitalLossCarriedForward", y2.CapitalLossCarriedForward, EUR(10000))
}

func TestEvaluate_Airdrop(t *testing.T) {
	testCases := []struct {
		treatment    AirdropTreatment
		wantCategory TaxCategory
		wantCost     Money
	}{
		{AirdropAsGift, TaxFreeGift, EUR(0)},
		{AirdropAsIncome, OtherIncome, EUR(40)},
		{AirdropTaxFree, TaxFreeAirdrop, EUR(0)},
	}
	for _, tc := range testCases {
		t.Run(tc.treatment.String(), func(t *testing.T) {
			l := newTestLedger(t,
				valued(operation("drop", day(0), "wallet", "UNI", 400, Airdrop), 40),
				valued(operation("s", day(3), "wallet", "UNI", -400, Sell), 50),
			)
			rs := Germany()
			rs.AirdropTreatment = tc.treatment
			ev := evaluate(t, l, rs, nil)
			if got := ev.Records[0].Category; got != tc.wantCategory {
				t.Errorf("airdrop Category = %v, want %v", got, tc.wantCategory)
			}
			assertMoney(t, "sale cost", ev.Records[1].Cost, tc.wantCost)
		})
	}
}

func TestEvaluate_PriceGaps(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("b", day(0), "kraken", "SOL", 10, Buy), 200),
		operation("s", day(5), "kraken", "SOL", -4, Sell),
		valued(operation("b2", day(0), "kraken", "BTC", 1, Buy), 10000),
		valued(operation("s2", day(6), "kraken", "BTC", -0.5, Sell), 6000),
	)
	ev := evaluate(t, l, Germany(), closeQuote(NewPriceCache(), "BTC", 2023, 10000))

	if len(ev.Records) != 2 {
		t.Fatalf("Evaluate() = %d records, want 2", len(ev.Records))
	}
	if ev.Records[0].Status != ValuationIncomplete {
		t.Errorf("Status = %v, want %v", ev.Records[0].Status, ValuationIncomplete)
	}
	// the unpriced sale does not turn its cost into a loss
	assertMoney(t, "incomplete Value", ev.Records[0].Value, EUR(0))
	assertMoney(t, "incomplete Cost", ev.Records[0].Cost, EUR(80))

	s, _ := ev.Summary("kraken", 2023)
	if s.Incomplete != 1 || !s.UnrealizedIncomplete {
		t.Errorf("Summary() incomplete = %d %v, want 1 true", s.Incomplete, s.UnrealizedIncomplete)
	}
	assertMoney(t, "private sales", s.Total(PrivateSaleTaxable).Value, EUR(1000))
	if s.PrivateSaleExempt {
		t.Errorf("PrivateSaleExempt = true, want false")
	}
	assertMoney(t, "TaxablePrivateSales", s.TaxablePrivateSales, EUR(1000))
	if len(ev.Gaps) != 2 {
		t.Fatalf("Evaluate() gaps = %v, want the sale and the year close", ev.Gaps)
	}
	if ev.Gaps[0].OperationID != "s" || !errors.Is(ev.Gaps[0].Err, ErrPriceUnavailable) {
		t.Errorf("Gaps[0] = %v, want unavailable price of s", ev.Gaps[0])
	}
	if ev.Gaps[1].OperationID != "" || ev.Gaps[1].Day != date.New(2023, time.December, 31) {
		t.Errorf("Gaps[1] = %v, want the 2023 close", ev.Gaps[1])
	}
}

func TestEvaluate_Errors(t *testing.T) {
	l := newTestLedger(t, valued(operation("b", day(0), "kraken", "BTC", 1, Buy), 100))

	rs := Germany()
	delete(rs.Kinds, Gift)
	if _, err := Evaluate(context.Background(), l, rs, NewPriceResolver("EUR", NewPriceCache()), Options{}); !errors.Is(err, ErrUnmappedOperationKind) {
		t.Errorf("Evaluate() error = %v, want ErrUnmappedOperationKind", err)
	}
	if _, err := Evaluate(context.Background(), l, Germany(), NewPriceResolver("USD", NewPriceCache()), Options{}); !errors.Is(err, ErrInvalidRuleConfiguration) {
		t.Errorf("Evaluate() error = %v, want ErrInvalidRuleConfiguration", err)
	}
}

// TestEvaluate_Deterministic checks that the output does not depend on the
// scheduling of depot groups.
func TestEvaluate_Deterministic(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("a1", day(0), "a", "BTC", 1, Buy), 100),
		valued(operation("b1", day(0), "b", "ETH", 10, Buy), 1000),
		valued(operation("c1", day(0), "c", "BTC", 2, Buy), 200),
		valued(operation("a2", day(3), "a", "BTC", -0.5, Sell), 80),
		valued(operation("b2", day(3), "b", "ETH", -20, Sell), 1000), // fails
		operation("c2", day(4), "c", "BTC", -1, Withdrawal),
		linked(operation("d2", day(4), "d", "BTC", 1, Deposit), "c2"),
		operation("d3", day(9), "d", "BTC", -1, Sell),
		valued(operation("e1", day(40), "e", "DOT", 5, StakingReward), 30),
	)
	cache := quotes(NewPriceCache(), "BTC", map[int]float64{8: 150, 10: 170})

	var outputs [][]byte
	for _, parallelism := range []int{1, 8, 1} {
		ev, err := Evaluate(context.Background(), l, Germany(), NewPriceResolver("EUR", cache), Options{Parallelism: parallelism})
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		out, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		outputs = append(outputs, out)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Errorf("run %d output differs from run 0:\n%s\n%s", i, outputs[0], outputs[i])
		}
	}
}

// TestEvaluate_Identity checks that every disposal is split into fragments that sum
// up to the disposed quantity and proceeds.
func TestEvaluate_Identity(t *testing.T) {
	l := newTestLedger(t,
		valued(operation("b1", day(0), "kraken", "BTC", 0.3, Buy), 3000),
		valued(operation("b2", day(1), "kraken", "BTC", 0.7, Buy), 7700),
		valued(operation("b3", day(2), "kraken", "BTC", 0.25, Buy), 3000),
		valued(operation("s1", day(3), "kraken", "BTC", -0.6, Sell), 7000),
		valued(operation("s2", day(4), "kraken", "BTC", -0.55, Sell), 6500),
	)
	for _, p := range []ConsumptionPolicy{OldestFirst, NewestFirst} {
		ev := evaluate(t, l, withPolicy(p), closeQuote(NewPriceCache(), "BTC", 2023, 12000))
		quantities := make(map[string]Quantity)
		proceeds := make(map[string]Money)
		var cost Money
		for _, d := range ev.Disposals {
			quantities[d.OperationID] = quantities[d.OperationID].Add(d.Quantity)
			proceeds[d.OperationID] = proceeds[d.OperationID].Add(d.Proceeds)
			cost = cost.Add(d.Cost)
		}
		for id, want := range map[string]float64{"s1": 0.6, "s2": 0.55} {
			if !quantities[id].Equal(Q(want)) {
				t.Errorf("%v: %s fragments sum to %v, want %v", p, id, quantities[id], want)
			}
		}
		assertMoney(t, p.String()+" s1 proceeds", proceeds["s1"], EUR(7000))
		assertMoney(t, p.String()+" s2 proceeds", proceeds["s2"], EUR(6500))

		// disposed cost plus the cost still held is what was paid
		s, _ := ev.Summary("kraken", 2023)
		held := EUR(1200) // 0.1 BTC at the close
		assertMoney(t, p.String()+" total cost", cost.Add(held).Sub(s.Unrealized), EUR(13700))
	}
}
