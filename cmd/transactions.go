package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	ibkr "github.com/brinvex/brinvex-util-ibkr"
)

type transactionsCmd struct{}

func (*transactionsCmd) Name() string { return "transactions" }
func (*transactionsCmd) Synopsis() string {
	return "prints the canonical transactions of statement files"
}
func (*transactionsCmd) Usage() string {
	return `bvx transactions <statement.xml...>

Parses the given statement files, merges overlapping periods, and prints
the resulting canonical transactions in identity order, one JSON line
each. The portfolio file is not touched.
`
}

func (*transactionsCmd) SetFlags(*flag.FlagSet) {}

func (*transactionsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one statement file must be given.")
		f.Usage()
		return subcommands.ExitUsageError
	}

	ptf, err := ibkr.NewService().FillPortfolioFiles(nil, f.Args()...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := ibkr.EncodeTransactions(os.Stdout, ptf.Transactions); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
