package cointax

import "time"

// MatchedDisposal is the disposal of a fragment of one lot.
type MatchedDisposal struct {
	OperationID string        `json:"operation"`
	Kind        OperationKind `json:"kind"`
	Depot       Depot         `json:"depot"`
	Asset       Asset         `json:"asset"`
	Quantity    Quantity      `json:"quantity"`
	Acquired    time.Time     `json:"acquired"`
	Disposed    time.Time     `json:"disposed"`
	Proceeds    Money         `json:"proceeds"`
	Cost        Money         `json:"cost"`
	Fee         Money         `json:"fee"`
	Origin      OperationKind `json:"origin"`    // kind of the operation that created the lot
	LotID       string        `json:"lot"`       // ID of the operation that created the lot
	Status      Valuation     `json:"valuation"` // incomplete when a price is missing

	seq, index int
}

// Gain returns proceeds minus cost basis minus allocated fee.
func (d MatchedDisposal) Gain() Money { return d.Proceeds.Sub(d.Cost).Sub(d.Fee) }

// Record is a categorized taxable (or tax free) event: a matched disposal, an income
// receipt, a margin payout, a gift or a standalone fee.
type Record struct {
	Category    TaxCategory   `json:"category"`
	Year        int           `json:"year"`
	Depot       Depot         `json:"depot"`
	Asset       Asset         `json:"asset"`
	Kind        OperationKind `json:"kind"`
	OperationID string        `json:"operation"`
	Time        time.Time     `json:"time"`
	Acquired    time.Time     `json:"acquired,omitzero"` // disposals only
	Quantity    Quantity      `json:"quantity"`
	Proceeds    Money         `json:"proceeds"`
	Cost        Money         `json:"cost"`
	Fee         Money         `json:"fee"`
	// Value is the gain of a disposal, the receipt value of an income or the
	// negative amount of a loss or a deductible fee.
	Value  Money     `json:"value"`
	Status Valuation `json:"valuation"`

	seq, index int
}

// compareEvents orders records and disposals by operation then fragment.
func compareEvents(at, bt time.Time, aseq, bseq, aindex, bindex int) int {
	if c := at.Compare(bt); c != 0 {
		return c
	}
	if aseq != bseq {
		return aseq - bseq
	}
	return aindex - bindex
}

func compareRecords(a, b Record) int {
	return compareEvents(a.Time, b.Time, a.seq, b.seq, a.index, b.index)
}

func compareDisposals(a, b MatchedDisposal) int {
	return compareEvents(a.Disposed, b.Disposed, a.seq, b.seq, a.index, b.index)
}

// worst returns the least complete valuation.
func worst(vs ...Valuation) Valuation {
	w := Valued
	for _, v := range vs {
		if v > w {
			w = v
		}
	}
	return w
}
