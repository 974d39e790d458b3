package cointax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/etnz/cointax/date"
)

// engine matches the operations of a group of depots against their lots.
//
// An engine is owned by a single goroutine.
type engine struct {
	ctx    context.Context
	rules  *RuleSet
	prices *PriceResolver
	ledger *Ledger
	log    *slog.Logger

	inv       *Inventories
	inTransit map[string][]Fragment // fragments of a withdrawal waiting for their deposit
	feesOf    map[string][]Operation
	attached  map[string]bool // fees settled with their trade
	failed    map[Depot]error

	disposals []MatchedDisposal
	records   []Record
	gaps      []PriceGap
}

func newEngine(ctx context.Context, ledger *Ledger, rules *RuleSet, prices *PriceResolver, log *slog.Logger) *engine {
	return &engine{
		ctx:       ctx,
		rules:     rules,
		prices:    prices,
		ledger:    ledger,
		log:       log,
		inv:       NewInventories(),
		inTransit: make(map[string][]Fragment),
		feesOf:    make(map[string][]Operation),
		attached:  make(map[string]bool),
		failed:    make(map[Depot]error),
	}
}

// depot returns the inventory depot of op.
func (e *engine) depot(op Operation) Depot {
	if e.rules.Mode == Merged {
		return AllDepots
	}
	return op.Depot
}

func (e *engine) inventory(op Operation) *Inventory {
	return e.inv.Get(e.depot(op), op.Asset)
}

func (e *engine) fiat() Asset { return e.rules.Fiat }

func (e *engine) zero() Money { return M(0, string(e.rules.Fiat)) }

// isSellLike reports whether op disposes lots against proceeds.
func (e *engine) isSellLike(op Operation) bool {
	switch op.Kind {
	case Sell:
		return true
	case MarginSettlementDelivery:
		return op.Quantity.IsNegative()
	case Withdrawal:
		return e.rules.WithdrawalIsDisposal
	}
	return false
}

// isBuyLike reports whether op creates a lot against a payment.
func (e *engine) isBuyLike(op Operation) bool {
	return op.Kind == Buy || (op.Kind == MarginSettlementDelivery && op.Quantity.IsPositive())
}

// attachFees links every fee to the trade it is paid for.
//
// A fee referencing a trade belongs to it. An unreferenced fee belongs to the only
// non fiat sale of its depot at its exact time, or failing that to the only non fiat
// purchase. Other fees are standalone.
func (e *engine) attachFees(ops []Operation) {
	type at struct {
		depot Depot
		t     time.Time
	}
	sells := make(map[at][]Operation)
	buys := make(map[at][]Operation)
	for _, op := range ops {
		if op.Asset == e.fiat() {
			continue
		}
		k := at{op.Depot, op.Time}
		if e.isSellLike(op) {
			sells[k] = append(sells[k], op)
		} else if e.isBuyLike(op) {
			buys[k] = append(buys[k], op)
		}
	}
	for _, fee := range ops {
		if fee.Kind != FeeOnly {
			continue
		}
		var trade Operation
		var found bool
		if fee.Ref != "" {
			if ref, ok := e.ledger.Operation(fee.Ref); ok && (e.isSellLike(ref) || e.isBuyLike(ref)) && ref.Asset != e.fiat() {
				trade, found = ref, true
			}
		} else {
			k := at{fee.Depot, fee.Time}
			switch {
			case len(sells[k]) == 1:
				trade, found = sells[k][0], true
			case len(sells[k]) == 0 && len(buys[k]) == 1:
				trade, found = buys[k][0], true
			}
		}
		if found {
			e.feesOf[trade.ID] = append(e.feesOf[trade.ID], fee)
			e.attached[fee.ID] = true
		}
	}
}

// run processes ops, which must be in processing order.
func (e *engine) run(ops []Operation) error {
	e.attachFees(ops)
	for _, op := range ops {
		if e.failed[e.depot(op)] != nil || e.attached[op.ID] {
			continue
		}
		if err := e.process(op); err != nil {
			return err
		}
	}
	for _, inv := range e.inv.All() {
		if debt := inv.Debt(); debt.IsPositive() && e.failed[inv.Depot()] == nil {
			e.fail(inv.Depot(), &InsufficientInventoryError{Depot: inv.Depot(), Asset: inv.Asset(), Wanted: debt})
		}
	}
	return nil
}

// process dispatches op to its handler. It returns configuration errors only,
// inventory errors fail the depot.
func (e *engine) process(op Operation) error {
	if op.Asset == e.fiat() {
		switch op.Kind {
		case Buy, Sell, Deposit, Withdrawal, MarginSettlementDelivery:
			// fiat legs carry no lot
			return nil
		}
	}
	switch op.Kind {
	case Buy:
		return e.buy(op)
	case Sell:
		return e.dispose(op)
	case MarginSettlementDelivery:
		if op.Quantity.IsPositive() {
			return e.buy(op)
		}
		return e.dispose(op)
	case FeeOnly:
		return e.standaloneFee(op)
	case LendingInterest, StakingReward, ReferralReward, Airdrop:
		return e.receive(op)
	case Gift:
		if op.Quantity.IsPositive() {
			return e.receive(op)
		}
		return e.dispose(op)
	case MarginGainPayout, MarginLossPayout:
		return e.marginPayout(op)
	case Deposit:
		return e.deposit(op)
	case Withdrawal:
		if e.rules.WithdrawalIsDisposal {
			return e.dispose(op)
		}
		return e.withdraw(op)
	}
	return fmt.Errorf("%w: %s", ErrUnmappedOperationKind, op.Kind)
}

// fail aborts the evaluation of depot.
func (e *engine) fail(depot Depot, err error) {
	if e.failed[depot] != nil {
		return
	}
	e.log.Error("depot evaluation aborted", "depot", depot, "err", err)
	e.failed[depot] = err
}

func (e *engine) failOp(op Operation, err error) {
	var ie *InsufficientInventoryError
	if errors.As(err, &ie) {
		ie.Op = &op
	}
	e.fail(e.depot(op), err)
}

// value returns the fiat value of op: exact when known at source, priced otherwise.
func (e *engine) value(op Operation) (Money, Valuation) {
	if op.FiatValue.Valid {
		return M(op.FiatValue.Decimal, string(e.fiat())), Valued
	}
	if op.Asset == e.fiat() {
		return M(op.Quantity.Abs().Decimal(), string(e.fiat())), Valued
	}
	v, err := e.prices.Value(e.ctx, op.Asset, op.Time, op.Quantity)
	if err != nil {
		e.gap(op, err)
		return e.zero(), ValuationIncomplete
	}
	return v, Valued
}

// tradeValue is like value but prefers the exact value of the counter-leg of a
// trade over a market price.
func (e *engine) tradeValue(op Operation) (Money, Valuation) {
	if op.FiatValue.Valid || op.Asset == e.fiat() {
		return e.value(op)
	}
	if c, ok := e.ledger.CounterLeg(op); ok && (c.FiatValue.Valid || c.Asset == e.fiat()) {
		return e.value(c)
	}
	return e.value(op)
}

func (e *engine) gap(op Operation, err error) {
	e.log.Warn("valuation incomplete", "op", op.ID, "asset", op.Asset, "time", op.Time, "err", err)
	e.gaps = append(e.gaps, PriceGap{Asset: op.Asset, Day: date.Of(op.Time), OperationID: op.ID, Err: err})
}

// feeValue returns the fiat value of the fees attached to trade.
func (e *engine) feeValue(trade Operation) (Money, Valuation) {
	total, status := e.zero(), Valued
	for _, fee := range e.feesOf[trade.ID] {
		v, s := e.value(fee)
		total, status = total.Add(v), worst(status, s)
	}
	return total, status
}

// settleFees removes the non fiat fees attached to trade from their inventory.
// feeValue already deducted them at market value, the cost of the lots they take
// is not deducted again.
func (e *engine) settleFees(trade Operation) {
	for _, fee := range e.feesOf[trade.ID] {
		if fee.Asset == e.fiat() {
			continue
		}
		e.inventory(fee).ConsumeFee(fee.Time, fee.Quantity.Abs(), e.rules.Policy)
	}
}

// acquire adds a lot for op.
func (e *engine) acquire(op Operation, cost Money, status Valuation) {
	q := op.Quantity.Abs()
	e.inventory(op).Add(Lot{
		Acquired:    op.Time,
		Quantity:    q,
		UnitCost:    cost.Div(q),
		Origin:      op.Kind,
		OperationID: op.ID,
		Status:      status,
	})
}

// buy creates a lot costing the trade value plus its fees.
func (e *engine) buy(op Operation) error {
	cost, cs := e.tradeValue(op)
	fee, fs := e.feeValue(op)
	e.acquire(op, cost.Add(fee), worst(cs, fs))
	e.settleFees(op)
	return nil
}

// dispose consumes lots for op and emits one disposal per fragment.
func (e *engine) dispose(op Operation) error {
	q := op.Quantity.Abs()
	frags, err := e.inventory(op).Consume(op.Time, q, e.rules.Policy)
	if err != nil {
		e.failOp(op, err)
		return nil
	}
	var proceeds Money
	var ps Valuation
	if op.Kind == Sell || op.Kind == MarginSettlementDelivery {
		proceeds, ps = e.tradeValue(op)
	} else {
		proceeds, ps = e.value(op)
	}
	fee, fs := e.feeValue(op)
	e.settleFees(op)

	// The last fragment takes what is left so that fragments add up exactly.
	restProceeds, restFee := proceeds, fee
	for i, f := range frags {
		p, fp := proceeds.Prorate(f.Quantity, q), fee.Prorate(f.Quantity, q)
		if i == len(frags)-1 {
			p, fp = restProceeds, restFee
		}
		restProceeds, restFee = restProceeds.Sub(p), restFee.Sub(fp)
		d := MatchedDisposal{
			OperationID: op.ID,
			Kind:        op.Kind,
			Depot:       op.Depot,
			Asset:       op.Asset,
			Quantity:    f.Quantity,
			Acquired:    f.Lot.Acquired,
			Disposed:    op.Time,
			Proceeds:    p,
			Cost:        f.Lot.Cost(f.Quantity),
			Fee:         fp,
			Origin:      f.Lot.Origin,
			LotID:       f.Lot.OperationID,
			Status:      worst(ps, fs, f.Lot.Status),
			seq:         op.Seq,
			index:       i,
		}
		cat, err := Categorize(Candidate{
			Kind:     op.Kind,
			Disposal: true,
			Origin:   d.Origin,
			Acquired: d.Acquired,
			Disposed: d.Disposed,
		}, e.rules)
		if err != nil {
			return err
		}
		e.disposals = append(e.disposals, d)
		// An incomplete gain is unknown, it must not move the year buckets.
		value := d.Gain()
		if d.Status == ValuationIncomplete {
			value = e.zero()
		}
		e.records = append(e.records, Record{
			Category:    cat,
			Year:        op.Time.Year(),
			Depot:       op.Depot,
			Asset:       op.Asset,
			Kind:        op.Kind,
			OperationID: op.ID,
			Time:        op.Time,
			Acquired:    d.Acquired,
			Quantity:    d.Quantity,
			Proceeds:    d.Proceeds,
			Cost:        d.Cost,
			Fee:         d.Fee,
			Value:       value,
			Status:      d.Status,
			seq:         op.Seq,
			index:       i,
		})
	}
	return nil
}

// record appends a record that does not consume a lot.
func (e *engine) record(op Operation, value, fee Money, status Valuation) (TaxCategory, error) {
	cat, err := Categorize(Candidate{
		Kind:       op.Kind,
		Disposed:   op.Time,
		FiatIncome: op.Asset == e.fiat(),
	}, e.rules)
	if err != nil {
		return 0, err
	}
	e.records = append(e.records, Record{
		Category:    cat,
		Year:        op.Time.Year(),
		Depot:       op.Depot,
		Asset:       op.Asset,
		Kind:        op.Kind,
		OperationID: op.ID,
		Time:        op.Time,
		Quantity:    op.Quantity.Abs(),
		Proceeds:    e.zero(),
		Cost:        e.zero(),
		Fee:         fee,
		Value:       value,
		Status:      status,
		seq:         op.Seq,
	})
	return cat, nil
}

// receive records an income, airdrop or gift receipt and creates its lot.
//
// Receipts taxed as income give their lot the receipt value as cost, so that a later
// disposal is not taxed twice. Other receipts cost nothing unless their value is
// known at source.
func (e *engine) receive(op Operation) error {
	v, status := e.value(op)
	cat, err := e.record(op, v, e.zero(), status)
	if err != nil {
		return err
	}
	if op.Asset == e.fiat() {
		return nil
	}
	cost, costStatus := e.zero(), Valued
	switch {
	case cat == OtherIncome || cat == CapitalIncome:
		if !e.rules.IncomeLotsAtZeroCost {
			cost, costStatus = v, status
		}
	case op.Kind == Gift && op.FiatValue.Valid:
		cost = v
	}
	e.acquire(op, cost, costStatus)
	return nil
}

// standaloneFee records a fee not attached to any trade as a deductible amount.
func (e *engine) standaloneFee(op Operation) error {
	v, status := e.value(op)
	if _, err := e.record(op, v.Neg(), v, status); err != nil {
		return err
	}
	if op.Asset != e.fiat() {
		e.inventory(op).ConsumeFee(op.Time, op.Quantity.Abs(), e.rules.Policy)
	}
	return nil
}

// marginPayout records a cash settled margin gain or loss.
//
// Payouts settled in a crypto asset move that asset: a gain creates a lot at market
// value, a loss is paid out of the lots like a fee.
func (e *engine) marginPayout(op Operation) error {
	v, status := e.value(op)
	if op.Kind == MarginLossPayout {
		v = v.Neg()
	}
	if _, err := e.record(op, v, e.zero(), status); err != nil {
		return err
	}
	if op.Asset == e.fiat() {
		return nil
	}
	if op.Kind == MarginGainPayout {
		e.acquire(op, v, status)
	} else {
		e.inventory(op).ConsumeFee(op.Time, op.Quantity.Abs(), e.rules.Policy)
	}
	return nil
}

// transferred returns the withdrawal op is the deposit of, if any.
func (e *engine) transferred(op Operation) (Operation, bool) {
	if e.rules.WithdrawalIsDisposal {
		return Operation{}, false
	}
	w, ok := e.ledger.CounterLeg(op)
	if !ok || w.Kind != Withdrawal || w.Asset != op.Asset {
		return Operation{}, false
	}
	return w, true
}

// withdraw moves lots out of a depot until their deposit shows up.
func (e *engine) withdraw(op Operation) error {
	if e.rules.Mode == Merged {
		if d, ok := e.ledger.CounterLeg(op); ok && d.Kind == Deposit {
			return nil // lots are pooled, the transfer is internal
		}
	}
	frags, err := e.inventory(op).Consume(op.Time, op.Quantity.Abs(), e.rules.Policy)
	if err != nil {
		e.failOp(op, err)
		return nil
	}
	e.inTransit[op.ID] = frags
	return nil
}

// deposit recreates the lots of the matching withdrawal, keeping their acquisition
// time and unit cost. Deposits from outside the ledger are valued at market.
func (e *engine) deposit(op Operation) error {
	w, linked := e.transferred(op)
	if linked && e.rules.Mode == Merged {
		return nil
	}
	if linked {
		if err := e.failed[e.depot(w)]; err != nil {
			e.fail(e.depot(op), fmt.Errorf("deposit %s comes from aborted depot %s: %w", op.ID, w.Depot, err))
			return nil
		}
		if frags, ok := e.inTransit[w.ID]; ok {
			delete(e.inTransit, w.ID)
			e.carry(op, frags)
			return nil
		}
		e.log.Warn("deposit precedes its withdrawal, valued at market", "deposit", op.ID, "withdrawal", w.ID)
	} else {
		e.log.Warn("unlinked deposit valued at market", "op", op.ID, "asset", op.Asset, "depot", op.Depot)
	}
	v, status := e.value(op)
	e.acquire(op, v, status)
	return nil
}

// carry adds the transferred fragments to the inventory of the deposit.
func (e *engine) carry(op Operation, frags []Fragment) {
	inv := e.inventory(op)
	remaining := op.Quantity.Abs()
	for _, f := range frags {
		take := f.Quantity.Min(remaining)
		if !take.IsPositive() {
			break
		}
		lot := f.Lot
		lot.Quantity, lot.Remaining = take, Quantity{}
		lot.arrived = op.Time
		inv.Add(lot)
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		e.log.Warn("deposit exceeds its withdrawal, surplus valued at market", "op", op.ID, "surplus", remaining)
		surplus := op
		surplus.Quantity = remaining
		v, status := e.value(surplus)
		e.acquire(surplus, v, status)
	}
}
