package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/brinvex/brinvex-util-ibkr/cmd"
)

func main() {
	completion()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion answers shell completion requests and returns for a normal run.
func completion() {
	c := &complete.Command{
		Sub: map[string]*complete.Command{
			"fetch": {Flags: map[string]complete.Predictor{
				"token": predict.Something,
				"query": predict.Something,
				"o":     predict.Files("*"),
			}},
			"portfolio": {
				Flags: map[string]complete.Predictor{"fresh": predict.Nothing},
				Args:  predict.Files("*.xml"),
			},
			"transactions": {Args: predict.Files("*.xml")},
			"summaries":    {Args: predict.Files("*.xml")},
		},
		Flags: map[string]complete.Predictor{
			"portfolio-file": predict.Files("*.json"),
		},
	}
	c.Complete(path.Base(os.Args[0]))
}
