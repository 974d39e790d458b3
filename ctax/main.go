// Command ctax computes crypto tax reports from a ledger of operations.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/etnz/cointax/cmd"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	// .env is optional, EODHD_API_KEY may come from the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "err", err)
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	completion().Complete("ctax")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion describes the command line for shell completion.
func completion() *complete.Command {
	global := map[string]complete.Predictor{
		"ledger": predict.Files("*.jsonl"),
		"rules":  predict.Files("*.json"),
		"prices": predict.Files("*.db"),
		"v":      predict.Nothing,
		"plain":  predict.Nothing,
	}
	return &complete.Command{
		Flags: global,
		Sub: map[string]*complete.Command{
			"evaluate": {Flags: map[string]complete.Predictor{
				"y":           predict.Something,
				"depot":       predict.Something,
				"json":        predict.Nothing,
				"fetch":       predict.Nothing,
				"no-gap-fill": predict.Nothing,
				"disposals":   predict.Nothing,
				"records":     predict.Nothing,
				"parallel":    predict.Something,
			}},
			"prices": {Flags: map[string]complete.Predictor{
				"fetch": predict.Nothing,
				"set":   predict.Something,
			}},
			"check": {},
			"fmt": {Flags: map[string]complete.Predictor{
				"stdout": predict.Nothing,
			}},
			"topic":    {Args: predict.Set{"ledger", "rules", "prices"}},
			"help":     {},
			"flags":    {},
			"commands": {},
		},
	}
}
