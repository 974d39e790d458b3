package cointax

import (
	"fmt"
	"time"
)

// Candidate is what the categorizer needs to know about a record.
type Candidate struct {
	Kind       OperationKind // kind of the operation producing the record
	Disposal   bool          // the record consumes a lot
	Origin     OperationKind // kind of the operation that created the lot, disposals only
	Acquired   time.Time     // disposals only
	Disposed   time.Time
	FiatIncome bool // income received in the fiat asset itself
}

// Categorize returns the tax category of a candidate record under rules.
//
// It fails only for kinds without a rule, which RuleSet.Validate reports beforehand.
func Categorize(c Candidate, rules *RuleSet) (TaxCategory, error) {
	rule, ok := rules.Kinds[c.Kind]
	if !ok || !rule.valid() {
		return 0, fmt.Errorf("%w: no rule for %s", ErrUnmappedOperationKind, c.Kind)
	}
	switch rule {
	case RuleHoldingPeriod, RuleTransfer:
		if !c.Disposal {
			return PrivateSaleTaxable, nil
		}
		if rules.ExemptGiftOriginLots && (c.Origin == Gift || c.Origin == Airdrop) {
			return PrivateSaleTaxFree, nil
		}
		if rules.HoldingPeriod.Exceeded(c.Acquired, c.Disposed) {
			return PrivateSaleTaxFree, nil
		}
		return PrivateSaleTaxable, nil
	case RuleFee:
		return PrivateSaleTaxable, nil
	case RuleOtherIncome:
		// Interest on money is income from capital.
		if c.FiatIncome {
			return CapitalIncome, nil
		}
		return OtherIncome, nil
	case RuleCapitalIncome:
		return CapitalIncome, nil
	case RuleGift:
		return TaxFreeGift, nil
	case RuleAirdropSwitch:
		switch rules.AirdropTreatment {
		case AirdropAsIncome:
			return OtherIncome, nil
		case AirdropTaxFree:
			return TaxFreeAirdrop, nil
		default:
			return TaxFreeGift, nil
		}
	}
	return 0, fmt.Errorf("%w: rule %s of %s", ErrInvalidRuleConfiguration, rule, c.Kind)
}
