package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	ibkr "github.com/brinvex/brinvex-util-ibkr"
)

type summariesCmd struct{}

func (*summariesCmd) Name() string { return "summaries" }
func (*summariesCmd) Synopsis() string {
	return "prints the per-day equity summaries of statement files"
}
func (*summariesCmd) Usage() string {
	return `bvx summaries <statement.xml...>

Parses the given statement files and prints one equity summary per report
date: cash, stock, dividend accruals and total, in the account's base
currency.
`
}

func (*summariesCmd) SetFlags(*flag.FlagSet) {}

func (*summariesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one statement file must be given.")
		f.Usage()
		return subcommands.ExitUsageError
	}

	statement, err := ibkr.NewService().ParseEquitySummariesFiles(f.Args()...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Account %s, %s - %s\n", statement.AccountID, statement.FromDate, statement.ToDate)
	for _, es := range statement.EquitySummaries {
		fmt.Printf("%s  cash %s  stock %s  accruals %s  total %s\n",
			es.ReportDate,
			ibkr.DisplayMoney(es.Cash, es.Currency),
			ibkr.DisplayMoney(es.Stock, es.Currency),
			ibkr.DisplayMoney(es.DividendAccruals, es.Currency),
			ibkr.DisplayMoney(es.Total, es.Currency))
	}
	return subcommands.ExitSuccess
}
