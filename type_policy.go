package cointax

import (
	"fmt"
	"strings"
)

// ConsumptionPolicy defines the order in which lots are consumed by a disposal.
type ConsumptionPolicy int

const (
	// OldestFirst (FIFO) consumes the lots acquired first.
	OldestFirst ConsumptionPolicy = iota
	// NewestFirst (LIFO) consumes the lots acquired last.
	NewestFirst
)

func (p ConsumptionPolicy) String() string {
	switch p {
	case OldestFirst:
		return "oldest-first"
	case NewestFirst:
		return "newest-first"
	default:
		return "unknown"
	}
}

// ParseConsumptionPolicy parses a string into a ConsumptionPolicy.
func ParseConsumptionPolicy(s string) (ConsumptionPolicy, error) {
	switch strings.ToLower(s) {
	case "oldest-first", "fifo":
		return OldestFirst, nil
	case "newest-first", "lifo":
		return NewestFirst, nil
	default:
		return 0, fmt.Errorf("%w: unknown consumption policy %q", ErrInvalidRuleConfiguration, s)
	}
}

func (p ConsumptionPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *ConsumptionPolicy) UnmarshalText(text []byte) (err error) {
	*p, err = ParseConsumptionPolicy(string(text))
	return
}

// Mode tells whether depots are evaluated separately or pooled.
type Mode int

const (
	PerDepot Mode = iota
	Merged
)

func (m Mode) String() string {
	switch m {
	case PerDepot:
		return "per-depot"
	case Merged:
		return "merged"
	default:
		return "unknown"
	}
}

// ParseMode parses a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "per-depot":
		return PerDepot, nil
	case "merged":
		return Merged, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidRuleConfiguration, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMode(string(text))
	return
}

// AirdropTreatment selects how airdrop receipts are taxed. Jurisdictions disagree.
type AirdropTreatment int

const (
	// AirdropAsGift reports airdrops as TaxFreeGift, the lot costs nothing.
	AirdropAsGift AirdropTreatment = iota
	// AirdropAsIncome reports airdrops as OtherIncome at market value, which is
	// also the cost of the lot.
	AirdropAsIncome
	// AirdropTaxFree reports airdrops as TaxFreeAirdrop, the lot costs nothing.
	AirdropTaxFree
)

func (a AirdropTreatment) String() string {
	switch a {
	case AirdropAsGift:
		return "gift"
	case AirdropAsIncome:
		return "income"
	case AirdropTaxFree:
		return "tax-free"
	default:
		return "unknown"
	}
}

// ParseAirdropTreatment parses a string into an AirdropTreatment.
func ParseAirdropTreatment(s string) (AirdropTreatment, error) {
	switch strings.ToLower(s) {
	case "gift":
		return AirdropAsGift, nil
	case "income":
		return AirdropAsIncome, nil
	case "tax-free":
		return AirdropTaxFree, nil
	default:
		return 0, fmt.Errorf("%w: unknown airdrop treatment %q", ErrInvalidRuleConfiguration, s)
	}
}

func (a AirdropTreatment) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AirdropTreatment) UnmarshalText(text []byte) (err error) {
	*a, err = ParseAirdropTreatment(string(text))
	return
}
