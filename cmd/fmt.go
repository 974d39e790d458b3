package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cointax"
	"github.com/google/subcommands"
)

type fmtCmd struct {
	stdout bool
}

func (*fmtCmd) Name() string { return "fmt" }
func (*fmtCmd) Synopsis() string {
	return "validates and formats the ledger file into a canonical form"
}
func (*fmtCmd) Usage() string {
	return `ctax fmt [-stdout]

  Validates and formats the ledger file. Operations are sorted in processing
  order, missing IDs are assigned and the file is rewritten in place in a
  canonical JSONL format.

Usage Examples:
# Rewrites the default ledger file.
$ ctax fmt

`
}

func (c *fmtCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.stdout, "stdout", false, "Print the formatted ledger instead of rewriting the file.")
}

func (c *fmtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := ledger.Check(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var buf bytes.Buffer
	if err := cointax.EncodeLedger(&buf, ledger); err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting ledger %q: %v\n", *ledgerPath, err)
		return subcommands.ExitFailure
	}
	if c.stdout {
		stdout.Write(buf.Bytes())
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(*ledgerPath, buf.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving formatted ledger %q: %v\n", *ledgerPath, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "Formatted %d operations into %s\n", ledger.Len(), *ledgerPath)
	return subcommands.ExitSuccess
}
