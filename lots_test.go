package cointax

import (
	"errors"
	"testing"
)

func newLotInventory(lots ...Lot) *Inventory {
	inv := NewInventory("kraken", "BTC")
	for _, l := range lots {
		inv.Add(l)
	}
	return inv
}

func lotAt(n int, q, unitCost float64) Lot {
	return Lot{Acquired: day(n), Quantity: Q(q), UnitCost: EUR(unitCost)}
}

func TestInventory_Consume(t *testing.T) {
	testCases := []struct {
		name     string
		policy   ConsumptionPolicy
		quantity float64
		want     []struct {
			day int
			q   float64
		}
		wantRemaining float64
	}{
		{
			name:     "oldest first splits the second lot",
			policy:   OldestFirst,
			quantity: 1.5,
			want: []struct {
				day int
				q   float64
			}{{0, 1}, {10, 0.5}},
			wantRemaining: 1.5,
		},
		{
			name:     "newest first splits the second lot",
			policy:   NewestFirst,
			quantity: 1.5,
			want: []struct {
				day int
				q   float64
			}{{20, 1}, {10, 0.5}},
			wantRemaining: 1.5,
		},
		{
			name:     "everything",
			policy:   NewestFirst,
			quantity: 3,
			want: []struct {
				day int
				q   float64
			}{{20, 1}, {10, 1}, {0, 1}},
			wantRemaining: 0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := newLotInventory(lotAt(0, 1, 100), lotAt(10, 1, 200), lotAt(20, 1, 300))
			frags, err := inv.Consume(day(30), Q(tc.quantity), tc.policy)
			if err != nil {
				t.Fatalf("Consume() error = %v", err)
			}
			if len(frags) != len(tc.want) {
				t.Fatalf("Consume() = %d fragments, want %d", len(frags), len(tc.want))
			}
			for i, w := range tc.want {
				if !frags[i].Lot.Acquired.Equal(day(w.day)) || !frags[i].Quantity.Equal(Q(w.q)) {
					t.Errorf("fragment[%d] = %v of lot %v, want %v of lot %v", i, frags[i].Quantity, frags[i].Lot.Acquired, w.q, day(w.day))
				}
			}
			if got := inv.Remaining(); !got.Equal(Q(tc.wantRemaining)) {
				t.Errorf("Remaining() = %v, want %v", got, tc.wantRemaining)
			}
		})
	}
}

func TestInventory_ConsumeInsufficient(t *testing.T) {
	inv := newLotInventory(lotAt(0, 1, 100), lotAt(10, 1, 200))
	_, err := inv.Consume(day(30), Q(2.5), OldestFirst)
	if !errors.Is(err, ErrInsufficientInventory) {
		t.Fatalf("Consume() error = %v, want ErrInsufficientInventory", err)
	}
	var ie *InsufficientInventoryError
	if !errors.As(err, &ie) || !ie.Held.Equal(Q(2)) || !ie.Wanted.Equal(Q(2.5)) {
		t.Errorf("Consume() error = %#v, want held 2 wanted 2.5", err)
	}
	if got := inv.Remaining(); !got.Equal(Q(2)) {
		t.Errorf("Remaining() after failure = %v, want 2", got)
	}
}

func TestInventory_FragmentKeepsLotState(t *testing.T) {
	inv := newLotInventory(lotAt(0, 2, 100))
	frags, _ := inv.Consume(day(5), Q(0.5), OldestFirst)
	if !frags[0].Lot.Remaining.Equal(Q(2)) {
		t.Errorf("fragment lot remaining = %v, want the value before consumption 2", frags[0].Lot.Remaining)
	}
	assertMoney(t, "fragment cost", frags[0].Lot.Cost(frags[0].Quantity), EUR(50))
}

func TestInventory_Snapshot(t *testing.T) {
	inv := newLotInventory(lotAt(0, 1, 100), lotAt(10, 1, 200))
	if _, err := inv.Consume(day(20), Q(1.5), OldestFirst); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name      string
		asof      int
		wantLots  int
		wantTotal float64
	}{
		{"before any lot", -1, 0, 0},
		{"first lot only", 5, 1, 1},
		{"both lots", 15, 2, 2},
		{"disposal at asof is not counted", 20, 2, 2},
		{"after disposal", 21, 1, 0.5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lots := inv.Snapshot(day(tc.asof))
			if len(lots) != tc.wantLots {
				t.Fatalf("Snapshot() = %d lots, want %d", len(lots), tc.wantLots)
			}
			var total Quantity
			for _, l := range lots {
				total = total.Add(l.Remaining)
			}
			if !total.Equal(Q(tc.wantTotal)) {
				t.Errorf("Snapshot() total = %v, want %v", total, tc.wantTotal)
			}
		})
	}

	// later consumption must not change a snapshot already taken
	snap := inv.Snapshot(day(30))
	if _, err := inv.Consume(day(40), Q(0.5), OldestFirst); err != nil {
		t.Fatal(err)
	}
	if !snap[0].Remaining.Equal(Q(0.5)) {
		t.Errorf("snapshot lot remaining = %v after later consumption, want 0.5", snap[0].Remaining)
	}
}

func TestInventory_AddKeepsAcquisitionOrder(t *testing.T) {
	inv := newLotInventory(lotAt(10, 1, 200))
	// a transferred lot keeps its older acquisition time
	inv.Add(lotAt(0, 1, 100))
	frags, err := inv.Consume(day(20), Q(1), OldestFirst)
	if err != nil {
		t.Fatal(err)
	}
	if !frags[0].Lot.Acquired.Equal(day(0)) {
		t.Errorf("Consume() took lot %v, want the oldest %v", frags[0].Lot.Acquired, day(0))
	}
}

func TestInventory_FeeDebt(t *testing.T) {
	inv := newLotInventory(lotAt(0, 1, 100))
	frags := inv.ConsumeFee(day(1), Q(1.25), OldestFirst)
	if len(frags) != 1 || !frags[0].Quantity.Equal(Q(1)) {
		t.Fatalf("ConsumeFee() = %v, want a single fragment of 1", frags)
	}
	if !inv.Debt().Equal(Q(0.25)) {
		t.Errorf("Debt() = %v, want 0.25", inv.Debt())
	}
	inv.Add(lotAt(2, 1, 100))
	if !inv.Debt().IsZero() {
		t.Errorf("Debt() after Add = %v, want 0", inv.Debt())
	}
	if got := inv.Remaining(); !got.Equal(Q(0.75)) {
		t.Errorf("Remaining() = %v, want 0.75", got)
	}
}

// TestInventory_AccountingIdentity checks that what remains is always what was
// acquired minus what was disposed.
func TestInventory_AccountingIdentity(t *testing.T) {
	for _, policy := range []ConsumptionPolicy{OldestFirst, NewestFirst} {
		inv := NewInventory("kraken", "ETH")
		acquired, disposed := Q(0), Q(0)
		steps := []float64{3, -1, 2.5, -2, -0.5, 4, -5.25, 1, -1.75}
		for i, s := range steps {
			q := Q(s)
			if q.IsPositive() {
				inv.Add(lotAt(i, s, float64(1000+i)))
				acquired = acquired.Add(q)
			} else {
				frags, err := inv.Consume(day(i), q.Abs(), policy)
				if err != nil {
					t.Fatalf("%v step %d: Consume() error = %v", policy, i, err)
				}
				var sum Quantity
				for j, f := range frags {
					sum = sum.Add(f.Quantity)
					if f.Lot.Acquired.After(day(i)) {
						t.Errorf("%v step %d: fragment %d acquired after its disposal", policy, i, j)
					}
					if j > 0 {
						prev := frags[j-1].Lot.Acquired
						if policy == OldestFirst && f.Lot.Acquired.Before(prev) || policy == NewestFirst && f.Lot.Acquired.After(prev) {
							t.Errorf("%v step %d: fragments out of order", policy, i)
						}
					}
				}
				if !sum.Equal(q.Abs()) {
					t.Errorf("%v step %d: fragments sum to %v, want %v", policy, i, sum, q.Abs())
				}
				disposed = disposed.Add(q.Abs())
			}
			if want := acquired.Sub(disposed); !inv.Remaining().Equal(want) {
				t.Errorf("%v step %d: Remaining() = %v, want %v", policy, i, inv.Remaining(), want)
			}
			for _, l := range inv.Open() {
				if l.Remaining.IsNegative() || l.Remaining.GreaterThan(l.Quantity) {
					t.Errorf("%v step %d: lot remaining %v out of [0, %v]", policy, i, l.Remaining, l.Quantity)
				}
			}
		}
	}
}

func TestInventory_SnapshotTransferredLot(t *testing.T) {
	inv := NewInventory("cold", "BTC")
	lot := lotAt(0, 1, 100)
	lot.arrived = day(10)
	inv.Add(lot)
	if got := inv.Snapshot(day(5)); len(got) != 0 {
		t.Errorf("Snapshot() before arrival = %d lots, want 0", len(got))
	}
	if got := inv.Snapshot(day(10)); len(got) != 1 || !got[0].Acquired.Equal(day(0)) {
		t.Errorf("Snapshot() at arrival = %v, want the lot acquired %v", got, day(0))
	}
}
