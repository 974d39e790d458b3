package cointax

import (
	"cmp"
	"slices"
	"time"
)

// Lot is a quantity of an asset acquired at a specific time and unit cost.
type Lot struct {
	Depot       Depot
	Asset       Asset
	Acquired    time.Time
	Quantity    Quantity // original quantity
	Remaining   Quantity
	UnitCost    Money         // fixed at acquisition
	Origin      OperationKind // kind of the operation that created the lot
	OperationID string        // operation that created the lot
	Status      Valuation     // incomplete when the cost could not be priced

	arrived  time.Time // when the lot entered its inventory, later than Acquired for transfers
	consumed []consumption
}

// consumption is an entry of the consumption log of a lot.
type consumption struct {
	at       time.Time
	quantity Quantity
}

// Cost returns the cost basis of q units of the lot.
func (l Lot) Cost(q Quantity) Money { return l.UnitCost.Mul(q) }

// copy returns a detached value of the lot, it shares nothing with l.
func (l *Lot) copy() Lot {
	c := *l
	c.consumed = nil
	return c
}

// remainingBefore returns the remaining quantity counting only consumptions
// strictly before t.
func (l *Lot) remainingBefore(t time.Time) Quantity {
	q := l.Quantity
	for _, c := range l.consumed {
		if c.at.Before(t) {
			q = q.Sub(c.quantity)
		}
	}
	return q
}

// Fragment is the part of a lot consumed by a disposal.
type Fragment struct {
	Lot      Lot // as it was before this consumption
	Quantity Quantity
}

// Inventory is the ordered queue of lots of one asset in one depot.
//
// The queue is ordered by acquisition time. Closed lots leave the queue but stay in
// the history used by snapshots.
type Inventory struct {
	depot Depot
	asset Asset

	all  []*Lot // every lot ever added, by acquisition time
	open []*Lot // lots with a positive remaining quantity, by acquisition time

	debt Quantity // fees taken before the asset was held
}

// NewInventory returns an empty inventory.
func NewInventory(depot Depot, asset Asset) *Inventory {
	return &Inventory{depot: depot, asset: asset}
}

func (inv *Inventory) Depot() Depot { return inv.depot }
func (inv *Inventory) Asset() Asset { return inv.asset }

// insertAt returns the position of a lot acquired at t: after every lot acquired at
// or before t.
func insertAt(lots []*Lot, t time.Time) int {
	i := len(lots)
	for i > 0 && lots[i-1].Acquired.After(t) {
		i--
	}
	return i
}

// Add appends a lot to the tail of the queue.
//
// Lots carried over by a transfer keep their acquisition time, they are inserted at
// their chronological position. Buffered fees are paid out of the new lot first.
func (inv *Inventory) Add(lot Lot) {
	lot.Depot, lot.Asset = inv.depot, inv.asset
	if lot.Remaining.IsZero() {
		lot.Remaining = lot.Quantity
	}
	if lot.arrived.IsZero() {
		lot.arrived = lot.Acquired
	}
	lot.consumed = nil
	l := &lot
	if inv.debt.IsPositive() {
		paid := inv.debt.Min(l.Remaining)
		l.Remaining = l.Remaining.Sub(paid)
		l.consumed = append(l.consumed, consumption{at: l.arrived, quantity: paid})
		inv.debt = inv.debt.Sub(paid)
	}
	inv.all = slices.Insert(inv.all, insertAt(inv.all, l.Acquired), l)
	if l.Remaining.IsPositive() {
		inv.open = slices.Insert(inv.open, insertAt(inv.open, l.Acquired), l)
	}
}

// Remaining returns the total open quantity.
func (inv *Inventory) Remaining() Quantity {
	var q Quantity
	for _, l := range inv.open {
		q = q.Add(l.Remaining)
	}
	return q
}

// Debt returns the fee quantity still owed.
func (inv *Inventory) Debt() Quantity { return inv.debt }

// Open returns copies of the open lots, oldest first.
func (inv *Inventory) Open() []Lot {
	lots := make([]Lot, len(inv.open))
	for i, l := range inv.open {
		lots[i] = l.copy()
	}
	return lots
}

// Consume removes quantity from the queue at time at, under policy.
//
// It returns the fragments in consumption order. If the queue holds less than
// quantity, it returns an *InsufficientInventoryError and leaves the queue untouched.
func (inv *Inventory) Consume(at time.Time, quantity Quantity, policy ConsumptionPolicy) ([]Fragment, error) {
	if !quantity.IsPositive() {
		return nil, nil
	}
	if held := inv.Remaining(); held.LessThan(quantity) {
		return nil, &InsufficientInventoryError{Depot: inv.depot, Asset: inv.asset, Held: held, Wanted: quantity}
	}
	return inv.take(at, quantity, policy), nil
}

// ConsumeFee is like Consume for fees: what cannot be paid now is owed and paid
// out of the next lots added.
func (inv *Inventory) ConsumeFee(at time.Time, quantity Quantity, policy ConsumptionPolicy) []Fragment {
	if !quantity.IsPositive() {
		return nil
	}
	available := inv.Remaining().Min(quantity)
	inv.debt = inv.debt.Add(quantity.Sub(available))
	return inv.take(at, available, policy)
}

// take consumes quantity, which must not exceed what is open.
func (inv *Inventory) take(at time.Time, quantity Quantity, policy ConsumptionPolicy) []Fragment {
	var frags []Fragment
	for quantity.IsPositive() && len(inv.open) > 0 {
		i := 0
		if policy == NewestFirst {
			i = len(inv.open) - 1
		}
		l := inv.open[i]
		q := l.Remaining.Min(quantity)
		frags = append(frags, Fragment{Lot: l.copy(), Quantity: q})

		l.Remaining = l.Remaining.Sub(q)
		l.consumed = append(l.consumed, consumption{at: at, quantity: q})
		quantity = quantity.Sub(q)
		if l.Remaining.IsZero() {
			inv.open = slices.Delete(inv.open, i, i+1)
		}
	}
	return frags
}

// Snapshot returns the lots held at asof, with their remaining quantity counting only
// consumptions strictly before asof. Closed lots are left out, and so are lots
// transferred in after asof.
//
// The returned lots are copies, later consumption does not change them.
func (inv *Inventory) Snapshot(asof time.Time) []Lot {
	var lots []Lot
	for _, l := range inv.all {
		if l.Acquired.After(asof) {
			break
		}
		if l.arrived.After(asof) {
			continue
		}
		remaining := l.remainingBefore(asof)
		if !remaining.IsPositive() {
			continue
		}
		c := l.copy()
		c.Remaining = remaining
		lots = append(lots, c)
	}
	return lots
}

// inventoryKey identifies an Inventory.
type inventoryKey struct {
	depot Depot
	asset Asset
}

// Inventories holds the inventories of every (depot, asset) pair.
type Inventories struct {
	m map[inventoryKey]*Inventory
}

// NewInventories returns an empty set of inventories.
func NewInventories() *Inventories {
	return &Inventories{m: make(map[inventoryKey]*Inventory)}
}

// Get returns the inventory of (depot, asset), creating it if needed.
func (s *Inventories) Get(depot Depot, asset Asset) *Inventory {
	k := inventoryKey{depot, asset}
	inv, ok := s.m[k]
	if !ok {
		inv = NewInventory(depot, asset)
		s.m[k] = inv
	}
	return inv
}

// All returns every inventory sorted by depot then asset.
func (s *Inventories) All() []*Inventory {
	all := make([]*Inventory, 0, len(s.m))
	for _, inv := range s.m {
		all = append(all, inv)
	}
	slices.SortFunc(all, func(a, b *Inventory) int {
		if c := cmp.Compare(a.depot, b.depot); c != 0 {
			return c
		}
		return cmp.Compare(a.asset, b.asset)
	})
	return all
}
