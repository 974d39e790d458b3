package cointax

import (
	"errors"
	"fmt"

	"github.com/etnz/cointax/date"
)

var (
	// ErrInsufficientInventory is returned when a disposal exceeds the quantity held.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrPriceUnavailable is returned when gap filling has no quote on one side.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrPriceUnknown is returned when a quote is missing and gap filling is disabled.
	ErrPriceUnknown = errors.New("price unknown")
	// ErrPriceNotFound is returned by a PriceSource that has no quote for a day.
	ErrPriceNotFound = errors.New("price not found")
	// ErrUnmappedOperationKind is returned when an OperationKind has no rule, or a
	// kind name is unknown.
	ErrUnmappedOperationKind = errors.New("unmapped operation kind")
	// ErrInvalidRuleConfiguration is returned by RuleSet.Validate.
	ErrInvalidRuleConfiguration = errors.New("invalid rule configuration")
	// ErrInvalidOperation is returned when an Operation cannot enter a Ledger.
	ErrInvalidOperation = errors.New("invalid operation")
)

// InsufficientInventoryError reports a disposal of more than what a depot holds.
type InsufficientInventoryError struct {
	Op     *Operation // nil for fees left unpaid at the end of a run
	Depot  Depot
	Asset  Asset
	Held   Quantity
	Wanted Quantity
}

func (e *InsufficientInventoryError) Error() string {
	if e.Op == nil {
		return fmt.Sprintf("insufficient inventory: %s %s owed in %s at the end of the ledger", e.Wanted, e.Asset, e.Depot)
	}
	return fmt.Sprintf("insufficient inventory: %s %s on %s disposes %s %s in %s, holding %s",
		e.Op.Kind, e.Op.ID, e.Op.Time.Format("2006-01-02 15:04:05"), e.Wanted, e.Asset, e.Depot, e.Held)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

// DepotFailure is a depot whose evaluation was aborted.
//
// None of its records are part of the Evaluation.
type DepotFailure struct {
	Depot Depot
	Err   error
}

func (f DepotFailure) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("depot", f.Depot)
	w.Append("error", f.Err.Error())
	return w.MarshalJSON()
}

// PriceGap is a price that could not be resolved during an evaluation.
type PriceGap struct {
	Asset       Asset
	Day         date.Date
	OperationID string // empty for year end valuations
	Err         error
}

func (g PriceGap) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("asset", g.Asset)
	w.Append("day", g.Day)
	w.Optional("operation", g.OperationID)
	w.Append("error", g.Err.Error())
	return w.MarshalJSON()
}
