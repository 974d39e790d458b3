package cointax

import "fmt"

// OperationKind is the closed set of economic events a ledger can hold.
type OperationKind int

const (
	Buy OperationKind = iota
	Sell
	FeeOnly
	LendingInterest
	StakingReward
	Airdrop
	ReferralReward
	// MarginGainPayout and MarginLossPayout are cash settled differences of a
	// margin or futures position.
	MarginGainPayout
	MarginLossPayout
	// MarginSettlementDelivery is the physical delivery of the underlying asset.
	MarginSettlementDelivery
	Gift
	Deposit
	Withdrawal

	numOperationKinds
)

var operationKindNames = [numOperationKinds]string{
	Buy:                      "buy",
	Sell:                     "sell",
	FeeOnly:                  "fee",
	LendingInterest:          "lending-interest",
	StakingReward:            "staking-reward",
	Airdrop:                  "airdrop",
	ReferralReward:           "referral-reward",
	MarginGainPayout:         "margin-gain",
	MarginLossPayout:         "margin-loss",
	MarginSettlementDelivery: "margin-delivery",
	Gift:                     "gift",
	Deposit:                  "deposit",
	Withdrawal:               "withdrawal",
}

// OperationKinds returns every OperationKind in declaration order.
func OperationKinds() []OperationKind {
	kinds := make([]OperationKind, numOperationKinds)
	for i := range kinds {
		kinds[i] = OperationKind(i)
	}
	return kinds
}

func (k OperationKind) valid() bool { return k >= 0 && k < numOperationKinds }

func (k OperationKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return operationKindNames[k]
}

// ParseOperationKind parses a string into an OperationKind.
func ParseOperationKind(s string) (OperationKind, error) {
	for k, name := range operationKindNames {
		if name == s {
			return OperationKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnmappedOperationKind, s)
}

// isIncome reports whether k is a pure income receipt.
func (k OperationKind) isIncome() bool {
	return k == LendingInterest || k == StakingReward || k == ReferralReward
}

func (k OperationKind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnmappedOperationKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *OperationKind) UnmarshalText(text []byte) error {
	v, err := ParseOperationKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
