package cointax

import (
	"context"
	"log/slog"

	"github.com/etnz/cointax/date"
	"github.com/shopspring/decimal"
)

// CategoryTotal sums the records of one category.
type CategoryTotal struct {
	Category TaxCategory `json:"category"`
	Count    int         `json:"count"`
	Proceeds Money       `json:"proceeds"`
	Cost     Money       `json:"cost"`
	Fees     Money       `json:"fees"`
	Value    Money       `json:"value"` // gain or loss for disposals, receipt value for income
}

// TaxYearSummary is the result of a tax year for a depot, or for AllDepots in merged
// mode.
type TaxYearSummary struct {
	Year       int             `json:"year"`
	Depot      Depot           `json:"depot"`
	Proceeds   Money           `json:"proceeds"`
	Cost       Money           `json:"cost"`
	Fees       Money           `json:"fees"`
	Categories []CategoryTotal `json:"categories"` // every category, in declaration order

	PrivateSaleExempt   bool  `json:"privateSaleExempt"`
	TaxablePrivateSales Money `json:"taxablePrivateSales"`
	OtherIncomeExempt   bool  `json:"otherIncomeExempt"`
	TaxableOtherIncome  Money `json:"taxableOtherIncome"`

	CapitalGains              Money `json:"capitalGains"`
	CapitalLosses             Money `json:"capitalLosses"` // positive amount
	CapitalLossCarriedIn      Money `json:"capitalLossCarriedIn"`
	CapitalLossOffset         Money `json:"capitalLossOffset"`
	CapitalLossCarriedForward Money `json:"capitalLossCarriedForward"`
	TaxableCapitalIncome      Money `json:"taxableCapitalIncome"`

	// Unrealized is the gain of the lots left at the year close, had they been
	// sold at that time. It is never part of the realized figures.
	Unrealized           Money `json:"unrealized"`
	UnrealizedIncomplete bool  `json:"unrealizedIncomplete"`
	// Incomplete counts the records with a missing price.
	Incomplete int `json:"incomplete"`
}

// Total returns the total of category c.
func (s TaxYearSummary) Total(c TaxCategory) CategoryTotal {
	for _, t := range s.Categories {
		if t.Category == c {
			return t
		}
	}
	return CategoryTotal{Category: c}
}

// Aggregator turns records and inventories into tax year summaries.
type Aggregator struct {
	Rules  *RuleSet
	Prices *PriceResolver
	Logger *slog.Logger
}

type groupKey struct {
	depot Depot
	year  int
}

// Aggregate computes a summary for every depot and year.
//
// first maps each of depots to the first year it is active in, years lists the years
// to report in increasing order. Records must be sorted. Capital losses carry forward
// from one year to the next within a depot.
func (a *Aggregator) Aggregate(ctx context.Context, records []Record, inventories []*Inventory, depots []Depot, first map[Depot]int, years []int) ([]TaxYearSummary, []PriceGap) {
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	groups := make(map[groupKey][]Record)
	for _, r := range records {
		k := groupKey{a.group(r.Depot), r.Year}
		groups[k] = append(groups[k], r)
	}
	held := make(map[Depot][]*Inventory)
	for _, inv := range inventories {
		held[inv.Depot()] = append(held[inv.Depot()], inv)
	}

	var summaries []TaxYearSummary
	var gaps []PriceGap
	for _, d := range depots {
		carry := a.zero()
		for _, y := range years {
			if y < first[d] {
				continue
			}
			s := a.summarize(d, y, groups[groupKey{d, y}], carry)
			carry = s.CapitalLossCarriedForward
			g := a.unrealized(ctx, &s, held[d])
			gaps = append(gaps, g...)
			if s.UnrealizedIncomplete {
				log.Warn("unrealized gain incomplete", "depot", d, "year", y)
			}
			summaries = append(summaries, s)
		}
	}
	return summaries, gaps
}

// group returns the summary depot of a record depot.
func (a *Aggregator) group(d Depot) Depot {
	if a.Rules.Mode == Merged {
		return AllDepots
	}
	return d
}

func (a *Aggregator) zero() Money { return M(0, string(a.Rules.Fiat)) }

func (a *Aggregator) money(d decimal.Decimal) Money { return M(d, string(a.Rules.Fiat)) }

// summarize computes the realized figures of a group.
func (a *Aggregator) summarize(d Depot, y int, records []Record, carriedIn Money) TaxYearSummary {
	zero := a.zero()
	s := TaxYearSummary{
		Year: y, Depot: d,
		Proceeds: zero, Cost: zero, Fees: zero,
		CapitalGains: zero, CapitalLosses: zero,
		CapitalLossCarriedIn: carriedIn,
		Unrealized:           zero,
	}
	totals := make([]CategoryTotal, numTaxCategories)
	for i := range totals {
		totals[i] = CategoryTotal{Category: TaxCategory(i), Proceeds: zero, Cost: zero, Fees: zero, Value: zero}
	}
	for _, r := range records {
		t := &totals[r.Category]
		t.Count++
		t.Proceeds = t.Proceeds.Add(r.Proceeds)
		t.Cost = t.Cost.Add(r.Cost)
		t.Fees = t.Fees.Add(r.Fee)
		t.Value = t.Value.Add(r.Value)

		s.Proceeds = s.Proceeds.Add(r.Proceeds)
		s.Cost = s.Cost.Add(r.Cost)
		s.Fees = s.Fees.Add(r.Fee)
		if r.Status == ValuationIncomplete {
			s.Incomplete++
		}
		if r.Category == CapitalIncome {
			if r.Value.IsNegative() {
				s.CapitalLosses = s.CapitalLosses.Add(r.Value.Neg())
			} else {
				s.CapitalGains = s.CapitalGains.Add(r.Value)
			}
		}
	}
	s.Categories = totals

	// De-minimis exemptions are all or nothing: a bucket at or below its
	// threshold is not taxable at all.
	private := totals[PrivateSaleTaxable].Value
	s.PrivateSaleExempt = private.LessThanOrEqual(a.money(a.Rules.PrivateSaleThreshold))
	s.TaxablePrivateSales = zero
	if !s.PrivateSaleExempt {
		s.TaxablePrivateSales = private
	}
	other := totals[OtherIncome].Value
	s.OtherIncomeExempt = other.LessThanOrEqual(a.money(a.Rules.OtherIncomeThreshold))
	s.TaxableOtherIncome = zero
	if !s.OtherIncomeExempt {
		s.TaxableOtherIncome = other
	}

	// Capital losses only offset capital gains, up to the cap.
	available := s.CapitalLosses.Add(carriedIn)
	offset := available.Min(s.CapitalGains)
	if a.Rules.CapitalLossCap.Valid {
		offset = offset.Min(a.money(a.Rules.CapitalLossCap.Decimal))
	}
	s.CapitalLossOffset = offset
	s.TaxableCapitalIncome = s.CapitalGains.Sub(offset)
	s.CapitalLossCarriedForward = available.Sub(offset)
	return s
}

// unrealized values the lots held at the close of the year.
func (a *Aggregator) unrealized(ctx context.Context, s *TaxYearSummary, inventories []*Inventory) []PriceGap {
	closing := date.YearClose(s.Year)
	var gaps []PriceGap
	prices := make(map[Asset]decimal.Decimal)
	missing := make(map[Asset]bool)
	for _, inv := range inventories {
		for _, lot := range inv.Snapshot(closing) {
			if missing[lot.Asset] {
				continue
			}
			p, ok := prices[lot.Asset]
			if !ok {
				var err error
				p, err = a.Prices.Price(ctx, lot.Asset, closing)
				if err != nil {
					missing[lot.Asset] = true
					s.UnrealizedIncomplete = true
					gaps = append(gaps, PriceGap{Asset: lot.Asset, Day: date.Of(closing), Err: err})
					continue
				}
				prices[lot.Asset] = p
			}
			value := a.money(p.Mul(lot.Remaining.Decimal()))
			s.Unrealized = s.Unrealized.Add(value.Sub(lot.Cost(lot.Remaining)))
		}
	}
	return gaps
}
