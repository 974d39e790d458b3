package cointax

import (
	"fmt"
	"strings"
)

// TaxCategory is the tax treatment of a record.
type TaxCategory int

const (
	PrivateSaleTaxable TaxCategory = iota
	PrivateSaleTaxFree
	OtherIncome
	CapitalIncome
	TaxFreeGift
	TaxFreeAirdrop

	numTaxCategories
)

var taxCategoryNames = [numTaxCategories]string{
	PrivateSaleTaxable: "private-sale-taxable",
	PrivateSaleTaxFree: "private-sale-tax-free",
	OtherIncome:        "other-income",
	CapitalIncome:      "capital-income",
	TaxFreeGift:        "tax-free-gift",
	TaxFreeAirdrop:     "tax-free-airdrop",
}

// TaxCategories returns every TaxCategory in declaration order.
func TaxCategories() []TaxCategory {
	cats := make([]TaxCategory, numTaxCategories)
	for i := range cats {
		cats[i] = TaxCategory(i)
	}
	return cats
}

func (c TaxCategory) String() string {
	if c < 0 || c >= numTaxCategories {
		return "unknown"
	}
	return taxCategoryNames[c]
}

// Title returns a human readable name of the category.
func (c TaxCategory) Title() string {
	words := strings.Split(c.String(), "-")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseTaxCategory parses a string into a TaxCategory.
func ParseTaxCategory(s string) (TaxCategory, error) {
	for c, name := range taxCategoryNames {
		if name == s {
			return TaxCategory(c), nil
		}
	}
	return 0, fmt.Errorf("unknown tax category: %q", s)
}

func (c TaxCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *TaxCategory) UnmarshalText(text []byte) (err error) {
	*c, err = ParseTaxCategory(string(text))
	return
}

// KindRule is the category assignment rule of an OperationKind.
type KindRule int

const (
	// RuleHoldingPeriod makes disposals taxable within the holding period and tax
	// free after it.
	RuleHoldingPeriod KindRule = iota
	// RuleOtherIncome reports receipts as OtherIncome.
	RuleOtherIncome
	// RuleCapitalIncome reports receipts, payouts and disposals as CapitalIncome.
	RuleCapitalIncome
	// RuleGift reports receipts and disposals as TaxFreeGift.
	RuleGift
	// RuleAirdropSwitch defers to the AirdropTreatment of the rule set.
	RuleAirdropSwitch
	// RuleTransfer moves lots between depots, it produces records only when
	// withdrawals are treated as disposals, and then follows RuleHoldingPeriod.
	RuleTransfer
	// RuleFee makes standalone fees deductible from PrivateSaleTaxable.
	RuleFee

	numKindRules
)

var kindRuleNames = [numKindRules]string{
	RuleHoldingPeriod: "holding-period",
	RuleOtherIncome:   "other-income",
	RuleCapitalIncome: "capital-income",
	RuleGift:          "gift",
	RuleAirdropSwitch: "airdrop-switch",
	RuleTransfer:      "transfer",
	RuleFee:           "fee",
}

func (r KindRule) valid() bool { return r >= 0 && r < numKindRules }

func (r KindRule) String() string {
	if !r.valid() {
		return "unknown"
	}
	return kindRuleNames[r]
}

// ParseKindRule parses a string into a KindRule.
func ParseKindRule(s string) (KindRule, error) {
	for r, name := range kindRuleNames {
		if name == s {
			return KindRule(r), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind rule %q", ErrInvalidRuleConfiguration, s)
}

func (r KindRule) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *KindRule) UnmarshalText(text []byte) (err error) {
	*r, err = ParseKindRule(string(text))
	return
}

// Valuation tells whether every fiat value of a record could be resolved.
type Valuation int

const (
	Valued Valuation = iota
	// ValuationIncomplete records hold a zero in place of a price that could not
	// be resolved.
	ValuationIncomplete
)

func (v Valuation) String() string {
	if v == ValuationIncomplete {
		return "incomplete"
	}
	return "valued"
}

func (v Valuation) MarshalText() ([]byte, error) { return []byte(v.String()), nil }
