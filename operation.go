package cointax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Asset identifies a crypto asset, or the fiat currency, by its symbol.
type Asset string

// AssetInfo declares the decimal precision of an asset.
type AssetInfo struct {
	Symbol    Asset `json:"symbol"`
	Precision int32 `json:"precision"`
}

// Depot identifies a custodial account or wallet.
type Depot string

// AllDepots is the depot of merged evaluations.
const AllDepots Depot = "ALL"

// Operation is an atomic economic event of a Ledger.
//
// Operations are values: the Ledger hands out copies and nothing mutates them once
// appended.
type Operation struct {
	ID       string
	Seq      int       // position in the input, breaks timestamp ties
	Time     time.Time // UTC, second precision
	Depot    Depot
	Asset    Asset
	Quantity Quantity // positive is an inflow, negative an outflow
	Kind     OperationKind
	// FiatValue is the absolute fiat value of the operation when known at source.
	FiatValue decimal.NullDecimal
	// Ref is the ID of the counter-leg: the other side of a trade, the trade a
	// fee is paid for, or the withdrawal a deposit comes from.
	Ref string
}

// compareOperations orders operations by time then input sequence.
func compareOperations(a, b Operation) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	return a.Seq - b.Seq
}

// validate checks the fields of o that do not depend on the rest of the ledger.
func (o Operation) validate() error {
	if !o.Kind.valid() {
		return fmt.Errorf("%w: %d", ErrUnmappedOperationKind, int(o.Kind))
	}
	if o.Time.IsZero() {
		return fmt.Errorf("%w: %s has no time", ErrInvalidOperation, o.ID)
	}
	if o.Depot == "" {
		return fmt.Errorf("%w: %s has no depot", ErrInvalidOperation, o.ID)
	}
	if o.Asset == "" {
		return fmt.Errorf("%w: %s has no asset", ErrInvalidOperation, o.ID)
	}
	if o.Quantity.IsZero() {
		return fmt.Errorf("%w: %s has a zero quantity", ErrInvalidOperation, o.ID)
	}
	if o.FiatValue.Valid && o.FiatValue.Decimal.IsNegative() {
		return fmt.Errorf("%w: %s has a negative fiat value %s", ErrInvalidOperation, o.ID, o.FiatValue.Decimal)
	}
	switch o.Kind {
	case Buy, LendingInterest, StakingReward, Airdrop, ReferralReward, MarginGainPayout, Deposit:
		if o.Quantity.IsNegative() {
			return fmt.Errorf("%w: %s %s must be an inflow, got %s", ErrInvalidOperation, o.Kind, o.ID, o.Quantity)
		}
	case Sell, FeeOnly, MarginLossPayout, Withdrawal:
		if o.Quantity.IsPositive() {
			return fmt.Errorf("%w: %s %s must be an outflow, got %s", ErrInvalidOperation, o.Kind, o.ID, o.Quantity)
		}
	case MarginSettlementDelivery, Gift:
		// either direction
	}
	return nil
}

// MarshalJSON writes the ledger line of the operation.
func (o Operation) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("command", cmdOperation)
	w.Append("id", o.ID)
	w.Append("time", o.Time.UTC().Format(time.RFC3339))
	w.Append("depot", o.Depot)
	w.Append("asset", o.Asset)
	w.Append("quantity", o.Quantity)
	w.Append("kind", o.Kind)
	if o.FiatValue.Valid {
		w.Append("fiat", o.FiatValue.Decimal)
	}
	w.Optional("ref", o.Ref)
	return w.MarshalJSON()
}
