package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cointax"
	"github.com/etnz/cointax/eodhd"
	"github.com/etnz/cointax/renderer"
	"github.com/google/subcommands"
)

type evaluateCmd struct {
	year      int
	depot     string
	asJSON    bool
	fetch     bool
	noGapFill bool
	disposals bool
	records   bool
	parallel  int
}

func (*evaluateCmd) Name() string     { return "evaluate" }
func (*evaluateCmd) Synopsis() string { return "compute the tax year summaries of the ledger" }
func (*evaluateCmd) Usage() string {
	return `ctax evaluate [-y <year>] [-depot <depot>] [-json] [-disposals] [-records] [-fetch]

  Matches every disposal of the ledger against its lots, categorizes the
  results and prints the tax summary of each depot and year.

  Prices are read from the price database. With -fetch, missing prices are
  downloaded from EODHD (EODHD_API_KEY) and saved back into the database.
`
}

func (c *evaluateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", 0, "Tax year to report on. Defaults to every year.")
	f.StringVar(&c.depot, "depot", "", "Depot to report on. Defaults to every depot.")
	f.BoolVar(&c.asJSON, "json", false, "Print the whole evaluation as JSON.")
	f.BoolVar(&c.fetch, "fetch", false, "Fetch missing prices from EODHD.")
	f.BoolVar(&c.noGapFill, "no-gap-fill", false, "Report missing prices instead of interpolating them.")
	f.BoolVar(&c.disposals, "disposals", false, "Also print every matched disposal.")
	f.BoolVar(&c.records, "records", false, "Also print every tax record.")
	f.IntVar(&c.parallel, "parallel", 0, "Number of depot groups evaluated at once. Defaults to the number of CPUs.")
}

func (c *evaluateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logger := newLogger()
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
	db, cache, err := OpenPrices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening price database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	prices := cointax.NewPriceResolver(rules.Fiat, cache)
	prices.GapFill = !c.noGapFill
	prices.Logger = logger
	if c.fetch {
		key := os.Getenv("EODHD_API_KEY")
		if key == "" {
			fmt.Fprintln(os.Stderr, "Error: -fetch requires EODHD_API_KEY")
			return subcommands.ExitUsageError
		}
		prices.Source = eodhd.NewSource(key, rules.Fiat, logger)
		prices.Refetch = true
	}

	ev, err := cointax.Evaluate(ctx, ledger, rules, prices, cointax.Options{Logger: logger, Parallelism: c.parallel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error evaluating ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.fetch {
		if _, err := db.Save(ctx, cache); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving prices: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	if c.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ev); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	opts := renderer.Options{Year: c.year, Depot: cointax.Depot(c.depot)}
	out := renderer.SummaryMarkdown(ev, opts)
	if c.disposals {
		out += "\n" + renderer.DisposalsMarkdown(ev, opts)
	}
	if c.records {
		out += "\n" + renderer.RecordsMarkdown(ev, opts)
	}
	printMarkdown(out)

	if len(ev.Failures) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
