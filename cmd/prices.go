package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cointax"
	"github.com/etnz/cointax/date"
	"github.com/etnz/cointax/eodhd"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// rangeFetcher is the part of eodhd.Source the prices command uses.
type rangeFetcher interface {
	cointax.PriceSource
	FetchRange(ctx context.Context, asset cointax.Asset, from, to date.Date) ([]date.Point[decimal.Decimal], error)
}

// newFetcher is replaced in tests.
var newFetcher = func(apiKey string, fiat cointax.Asset) rangeFetcher {
	return eodhd.NewSource(apiKey, fiat, newLogger())
}

type pricesCmd struct {
	fetch bool
	set   string
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "list, fetch or set the prices the ledger needs" }
func (*pricesCmd) Usage() string {
	return `ctax prices [-fetch] [-set <asset>:<day>:<price>]

  Lists the daily prices the evaluation of the ledger needs and the price
  database does not hold: operations without a known fiat value and the
  year closes of held assets.

  With -fetch, they are downloaded from EODHD (EODHD_API_KEY), one range
  request per asset, and saved into the database.
  With -set, a single price is written into the database.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.fetch, "fetch", false, "Fetch the missing prices from EODHD.")
	f.StringVar(&c.set, "set", "", "Set one price, as ASSET:YYYY-MM-DD:PRICE.")
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, cache, err := OpenPrices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening price database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if c.set != "" {
		asset, day, price, err := parsePrice(c.set)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		cache.Set(asset, day, price)
		if _, err := db.Save(ctx, cache); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving prices: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "%s on %s: %s\n", asset, day, price)
		return subcommands.ExitSuccess
	}

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

	missing := cointax.MissingPrices(ledger, rules, cache)
	if !c.fetch {
		for _, m := range missing {
			fmt.Fprintf(stdout, "%s\t%s\n", m.Asset, m.Day)
		}
		return subcommands.ExitSuccess
	}

	key := os.Getenv("EODHD_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: -fetch requires EODHD_API_KEY")
		return subcommands.ExitUsageError
	}
	n, err := fetchMissing(ctx, newFetcher(key, rules.Fiat), cache, missing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
	}
	if _, serr := db.Save(ctx, cache); serr != nil {
		fmt.Fprintf(os.Stderr, "Error saving prices: %v\n", serr)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%d prices fetched, %d still missing\n", n, len(cointax.MissingPrices(ledger, rules, cache)))
	if err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// fetchMissing fetches the range of days missing for each asset and stores every
// point returned in cache. Days the range does not cover are fetched one by one.
func fetchMissing(ctx context.Context, src rangeFetcher, cache *cointax.PriceCache, missing []cointax.PriceRequest) (int, error) {
	// missing is sorted by asset then day.
	type span struct{ from, to date.Date }
	var assets []cointax.Asset
	spans := make(map[cointax.Asset]span)
	for _, m := range missing {
		s, ok := spans[m.Asset]
		if !ok {
			assets = append(assets, m.Asset)
			s.from = m.Day
		}
		s.to = m.Day
		spans[m.Asset] = s
	}

	n := 0
	var errs []error
	for _, a := range assets {
		points, err := src.FetchRange(ctx, a, spans[a].from, spans[a].to)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
			continue
		}
		for _, p := range points {
			cache.Set(a, p.Day, p.Value)
			n++
		}
	}
	for _, m := range missing {
		if _, ok := cache.Get(m.Asset, m.Day); ok {
			continue
		}
		price, err := src.Fetch(ctx, m.Asset, m.Day)
		if errors.Is(err, cointax.ErrPriceNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s on %s: %w", m.Asset, m.Day, err))
			continue
		}
		cache.Set(m.Asset, m.Day, price)
		n++
	}
	return n, errors.Join(errs...)
}
