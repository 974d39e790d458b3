// Package cmd implements the CLI application to evaluate a crypto ledger for taxes.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/cointax"
	"github.com/etnz/cointax/pricedb"
	"github.com/google/subcommands"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&evaluateCmd{}, "taxes")
	c.Register(&pricesCmd{}, "taxes")

	c.Register(&checkCmd{}, "ledger")
	c.Register(&fmtCmd{}, "ledger")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var ledgerPath = flag.String("ledger", "ledger.jsonl", "Path to the ledger file (JSONL format)")
var rulesPath = flag.String("rules", "", "Path to a JSON rule set. Defaults to the German rules.")
var pricesPath = flag.String("prices", "prices.db", "Path to the sqlite price database")
var verbose = flag.Bool("v", false, "Log evaluation details to stderr")
var plain = flag.Bool("plain", false, "Print raw markdown instead of rendering it for the terminal")

var stdout io.Writer = os.Stdout

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// DecodeLedger reads the app ledger file.
func DecodeLedger() (*cointax.Ledger, error) {
	f, err := os.Open(*ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("could not open ledger: %w", err)
	}
	defer f.Close()
	l, err := cointax.DecodeLedger(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode ledger %q: %w", *ledgerPath, err)
	}
	return l, nil
}

// DecodeRules reads the app rule set, or returns the German rules.
func DecodeRules() (*cointax.RuleSet, error) {
	if *rulesPath == "" {
		return cointax.Germany(), nil
	}
	f, err := os.Open(*rulesPath)
	if err != nil {
		return nil, fmt.Errorf("could not open rules: %w", err)
	}
	defer f.Close()
	rs, err := cointax.DecodeRuleSet(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode rules %q: %w", *rulesPath, err)
	}
	return rs, nil
}

// OpenPrices opens the app price database and loads it into a new cache.
func OpenPrices(ctx context.Context) (*pricedb.DB, *cointax.PriceCache, error) {
	db, err := pricedb.Open(*pricesPath)
	if err != nil {
		return nil, nil, err
	}
	cache := cointax.NewPriceCache()
	if _, err := db.Load(ctx, cache); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, cache, nil
}

// printMarkdown prints md to stdout, rendered for the terminal unless -plain is set.
func printMarkdown(md string) {
	if *plain {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(160))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
