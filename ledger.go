package cointax

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/etnz/cointax/date"
)

// Ledger represents a list of operations.
//
// In a Ledger operations are always in chronological order, ties keep the input order.
type Ledger struct {
	ops     []Operation
	byID    map[string]int      // index of operations by ID, refreshed on sort
	linked  map[string][]string // IDs of the operations referencing an ID
	assets  map[Asset]AssetInfo
	nextSeq int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		byID:   make(map[string]int),
		linked: make(map[string][]string),
		assets: make(map[Asset]AssetInfo),
	}
}

// Declare records the precision of an asset. Operations appended afterwards must fit it.
func (l *Ledger) Declare(info AssetInfo) error {
	if info.Symbol == "" || info.Precision < 0 {
		return fmt.Errorf("%w: invalid asset declaration %+v", ErrInvalidOperation, info)
	}
	l.assets[info.Symbol] = info
	return nil
}

// Asset returns the declaration of an asset.
func (l *Ledger) Asset(a Asset) (AssetInfo, bool) {
	info, ok := l.assets[a]
	return info, ok
}

// Assets returns the declared assets sorted by symbol.
func (l *Ledger) Assets() []AssetInfo {
	return slices.SortedFunc(maps.Values(l.assets), func(a, b AssetInfo) int { return cmp.Compare(a.Symbol, b.Symbol) })
}

// Append adds operations to the ledger.
//
// Each operation receives the next input sequence number, its time is normalized to
// UTC seconds and a missing ID is derived from the sequence. References to other
// operations are checked by Check, once the whole ledger is known.
func (l *Ledger) Append(ops ...Operation) error {
	for _, op := range ops {
		op.Seq = l.nextSeq
		op.Time = op.Time.UTC().Truncate(time.Second)
		if op.ID == "" {
			op.ID = fmt.Sprintf("#%d", op.Seq)
		}
		if err := op.validate(); err != nil {
			return err
		}
		if _, exists := l.byID[op.ID]; exists {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidOperation, op.ID)
		}
		if info, ok := l.assets[op.Asset]; ok && !op.Quantity.Fits(info.Precision) {
			return fmt.Errorf("%w: %s quantity %s exceeds %s precision %d", ErrInvalidOperation, op.ID, op.Quantity, op.Asset, info.Precision)
		}
		l.nextSeq++

		// Operations mostly come in chronological order, insert from the tail.
		i := len(l.ops)
		for i > 0 && compareOperations(l.ops[i-1], op) > 0 {
			i--
		}
		l.ops = slices.Insert(l.ops, i, op)
		for j := i; j < len(l.ops); j++ {
			l.byID[l.ops[j].ID] = j
		}
		if op.Ref != "" {
			l.linked[op.Ref] = append(l.linked[op.Ref], op.ID)
		}
	}
	return nil
}

// Check validates the references between operations.
func (l *Ledger) Check() error {
	for _, op := range l.ops {
		if op.Ref == "" {
			continue
		}
		if op.Ref == op.ID {
			return fmt.Errorf("%w: %s references itself", ErrInvalidOperation, op.ID)
		}
		if _, ok := l.byID[op.Ref]; !ok {
			return fmt.Errorf("%w: %s references unknown operation %q", ErrInvalidOperation, op.ID, op.Ref)
		}
	}
	return nil
}

// Len returns the number of operations.
func (l *Ledger) Len() int { return len(l.ops) }

// Operations returns an iterator over the operations in processing order.
func (l *Ledger) Operations() iter.Seq[Operation] {
	return func(yield func(Operation) bool) {
		for _, op := range l.ops {
			if !yield(op) {
				return
			}
		}
	}
}

// Operation returns the operation with that ID.
func (l *Ledger) Operation(id string) (Operation, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Operation{}, false
	}
	return l.ops[i], true
}

// Linked returns the operations connected to op by a reference, in either
// direction, in processing order.
func (l *Ledger) Linked(op Operation) []Operation {
	var ops []Operation
	if ref, ok := l.Operation(op.Ref); ok {
		ops = append(ops, ref)
	}
	for _, id := range l.linked[op.ID] {
		if o, ok := l.Operation(id); ok && o.ID != op.Ref {
			ops = append(ops, o)
		}
	}
	slices.SortFunc(ops, compareOperations)
	return ops
}

// CounterLeg returns the other side of op: the first linked operation that is not a fee.
func (l *Ledger) CounterLeg(op Operation) (Operation, bool) {
	if op.Kind == FeeOnly {
		return Operation{}, false
	}
	for _, o := range l.Linked(op) {
		if o.Kind != FeeOnly {
			return o, true
		}
	}
	return Operation{}, false
}

// Depots returns every depot of the ledger, sorted.
func (l *Ledger) Depots() []Depot {
	set := make(map[Depot]struct{})
	for _, op := range l.ops {
		set[op.Depot] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Span returns the range of days covered by the ledger.
func (l *Ledger) Span() date.Range {
	if len(l.ops) == 0 {
		return date.Range{}
	}
	return date.Range{From: date.Of(l.ops[0].Time), To: date.Of(l.ops[len(l.ops)-1].Time)}
}
