package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/cointax"
	"github.com/etnz/cointax/date"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type checkCmd struct{}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "validate the ledger and the rules" }
func (*checkCmd) Usage() string {
	return `ctax check

  Decodes the ledger and the rule set and reports the first problems found:
  unknown kinds, broken references, invalid thresholds.
`
}

func (*checkCmd) SetFlags(f *flag.FlagSet) {}

func (*checkCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rules, err := DecodeRules()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := ledger.Check(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	span := ledger.Span()
	fmt.Fprintf(stdout, "%d operations in %d depots from %s to %s, rules %q (%s, %s)\n",
		ledger.Len(), len(ledger.Depots()), span.From, span.To, rules.Name, rules.Policy, rules.Mode)
	return subcommands.ExitSuccess
}

// parsePrice parses ASSET:YYYY-MM-DD:PRICE.
func parsePrice(s string) (cointax.Asset, date.Date, decimal.Decimal, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", date.Date{}, decimal.Zero, fmt.Errorf("invalid price %q, want ASSET:YYYY-MM-DD:PRICE", s)
	}
	day, err := date.Parse(parts[1])
	if err != nil {
		return "", date.Date{}, decimal.Zero, fmt.Errorf("invalid price day %q: %w", parts[1], err)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil || !price.IsPositive() {
		return "", date.Date{}, decimal.Zero, fmt.Errorf("invalid price value %q", parts[2])
	}
	return cointax.Asset(strings.ToUpper(parts[0])), day, price, nil
}
