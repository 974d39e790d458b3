package cointax

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// HoldingPeriod is a calendar duration after which a disposal is tax free.
type HoldingPeriod struct {
	Years  int `json:"years,omitempty"`
	Months int `json:"months,omitempty"`
	Days   int `json:"days,omitempty"`
}

// End returns the last instant of the holding period of a lot acquired at acquired.
//
// Years and months move the calendar month, keeping the day of month but clamped to
// the last day of the target month: a lot bought on February 29 ends its one year
// period on February 28. Days are added afterwards.
func (p HoldingPeriod) End(acquired time.Time) time.Time {
	y, m, d := acquired.Date()
	hh, mm, ss := acquired.Clock()
	loc := acquired.Location()
	// day 0 of the next month is the last day of the target month
	last := time.Date(y+p.Years, m+time.Month(p.Months)+1, 0, 0, 0, 0, 0, loc)
	d = min(d, last.Day())
	end := time.Date(last.Year(), last.Month(), d, hh, mm, ss, acquired.Nanosecond(), loc)
	return end.AddDate(0, 0, p.Days)
}

// Exceeded reports whether a disposal at disposed comes after the end of the holding
// period. A disposal exactly at the end is still within the period.
func (p HoldingPeriod) Exceeded(acquired, disposed time.Time) bool {
	return disposed.After(p.End(acquired))
}

func (p HoldingPeriod) String() string {
	return fmt.Sprintf("%dy%dm%dd", p.Years, p.Months, p.Days)
}

// RuleSet is the jurisdiction configuration of an evaluation.
type RuleSet struct {
	Name string `json:"name"`
	// Fiat is the asset every value is expressed in.
	Fiat          Asset         `json:"fiat"`
	HoldingPeriod HoldingPeriod `json:"holdingPeriod"`
	// PrivateSaleThreshold and OtherIncomeThreshold are de-minimis amounts: a
	// yearly bucket summing to at most the threshold is not taxable at all.
	PrivateSaleThreshold decimal.Decimal `json:"privateSaleThreshold"`
	OtherIncomeThreshold decimal.Decimal `json:"otherIncomeThreshold"`
	// CapitalLossCap is the yearly amount of capital losses that may offset
	// capital gains. Null means unlimited.
	CapitalLossCap   decimal.NullDecimal            `json:"capitalLossCap"`
	AirdropTreatment AirdropTreatment               `json:"airdropTreatment"`
	Policy           ConsumptionPolicy              `json:"policy"`
	Mode             Mode                           `json:"mode"`
	Kinds            map[OperationKind]KindRule     `json:"kinds"`
	// WithdrawalIsDisposal makes every withdrawal a sale at market value instead
	// of a transfer.
	WithdrawalIsDisposal bool `json:"withdrawalIsDisposal,omitempty"`
	// IncomeLotsAtZeroCost creates lots of income receipts at zero cost instead
	// of their receipt value.
	IncomeLotsAtZeroCost bool `json:"incomeLotsAtZeroCost,omitempty"`
	// ExemptGiftOriginLots makes disposals of lots received as gift or airdrop
	// tax free.
	ExemptGiftOriginLots bool `json:"exemptGiftOriginLots,omitempty"`
}

// DefaultKinds returns the usual assignment of rules to kinds.
func DefaultKinds() map[OperationKind]KindRule {
	return map[OperationKind]KindRule{
		Buy:                      RuleHoldingPeriod,
		Sell:                     RuleHoldingPeriod,
		FeeOnly:                  RuleFee,
		LendingInterest:          RuleOtherIncome,
		StakingReward:            RuleOtherIncome,
		Airdrop:                  RuleAirdropSwitch,
		ReferralReward:           RuleOtherIncome,
		MarginGainPayout:         RuleCapitalIncome,
		MarginLossPayout:         RuleCapitalIncome,
		MarginSettlementDelivery: RuleHoldingPeriod,
		Gift:                     RuleGift,
		Deposit:                  RuleTransfer,
		Withdrawal:               RuleTransfer,
	}
}

// Germany returns the German rules: one year holding period, €600 private sale
// exemption, €256 other income exemption, airdrops as gifts.
func Germany() *RuleSet {
	return &RuleSet{
		Name:                 "germany",
		Fiat:                 "EUR",
		HoldingPeriod:        HoldingPeriod{Years: 1},
		PrivateSaleThreshold: decimal.NewFromInt(600),
		OtherIncomeThreshold: decimal.NewFromInt(256),
		AirdropTreatment:     AirdropAsGift,
		Policy:               OldestFirst,
		Mode:                 PerDepot,
		Kinds:                DefaultKinds(),
	}
}

// Validate checks that the rule set is complete and consistent.
//
// Every OperationKind must have a rule, otherwise the error wraps
// ErrUnmappedOperationKind. Other problems wrap ErrInvalidRuleConfiguration.
func (rs *RuleSet) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidRuleConfiguration}, args...)...))
	}
	if rs.Fiat == "" {
		invalid("no fiat asset")
	}
	if hp := rs.HoldingPeriod; hp.Years < 0 || hp.Months < 0 || hp.Days < 0 {
		invalid("negative holding period %s", hp)
	}
	if rs.PrivateSaleThreshold.IsNegative() {
		invalid("negative private sale threshold %s", rs.PrivateSaleThreshold)
	}
	if rs.OtherIncomeThreshold.IsNegative() {
		invalid("negative other income threshold %s", rs.OtherIncomeThreshold)
	}
	if rs.CapitalLossCap.Valid && rs.CapitalLossCap.Decimal.IsNegative() {
		invalid("negative capital loss cap %s", rs.CapitalLossCap.Decimal)
	}
	if rs.AirdropTreatment.String() == "unknown" {
		invalid("airdrop treatment %d", int(rs.AirdropTreatment))
	}
	if rs.Policy.String() == "unknown" {
		invalid("consumption policy %d", int(rs.Policy))
	}
	if rs.Mode.String() == "unknown" {
		invalid("mode %d", int(rs.Mode))
	}
	for _, k := range OperationKinds() {
		rule, ok := rs.Kinds[k]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: no rule for %s", ErrUnmappedOperationKind, k))
			continue
		}
		if !rule.valid() {
			invalid("rule %d of %s", int(rule), k)
		}
	}
	for k := range rs.Kinds {
		if !k.valid() {
			errs = append(errs, fmt.Errorf("%w: rule for %s", ErrUnmappedOperationKind, k))
		}
	}
	return errors.Join(errs...)
}

// DecodeRuleSet reads a JSON rule set. Fields left out keep the values of the
// German preset.
func DecodeRuleSet(r io.Reader) (*RuleSet, error) {
	rs := Germany()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	// Kinds given in the file override the defaults one by one.
	kinds := rs.Kinds
	rs.Kinds = nil
	if err := dec.Decode(rs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRuleConfiguration, err)
	}
	for k, rule := range rs.Kinds {
		kinds[k] = rule
	}
	rs.Kinds = kinds
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}
