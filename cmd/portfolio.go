package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/subcommands"

	ibkr "github.com/brinvex/brinvex-util-ibkr"
)

type portfolioCmd struct {
	fresh bool
}

func (*portfolioCmd) Name() string { return "portfolio" }
func (*portfolioCmd) Synopsis() string {
	return "replays statement files into the portfolio and prints its state"
}
func (*portfolioCmd) Usage() string {
	return `bvx portfolio [-fresh] <statement.xml...>

Replays the given statement files into the portfolio file and prints the
resulting cash balances and positions. Statements already replayed are
recognized by transaction identity and not applied twice, so overlapping
statement periods are safe.

The -fresh flag ignores an existing portfolio file and rebuilds the
portfolio from the given statements alone.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.fresh, "fresh", false, "Rebuild the portfolio from scratch, ignoring the portfolio file.")
}

func (c *portfolioCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var ptf *ibkr.Portfolio
	if !c.fresh {
		var err error
		ptf, err = LoadPortfolio()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not load portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	if len(f.Args()) > 0 {
		var err error
		ptf, err = ibkr.NewService().FillPortfolioFiles(ptf, f.Args()...)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		if err := SavePortfolio(ptf); err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not save portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	if ptf == nil {
		fmt.Fprintln(os.Stderr, "Error: no portfolio file and no statement files given.")
		f.Usage()
		return subcommands.ExitUsageError
	}

	printPortfolio(ptf)
	return subcommands.ExitSuccess
}

func printPortfolio(ptf *ibkr.Portfolio) {
	fmt.Printf("Account %s, %s - %s, %d transactions\n",
		ptf.AccountID, ptf.PeriodFrom, ptf.PeriodTo, len(ptf.Transactions))

	fmt.Println("Cash:")
	ccys := make([]string, 0, len(ptf.Cash))
	for ccy := range ptf.Cash {
		ccys = append(ccys, ccy)
	}
	slices.Sort(ccys)
	for _, ccy := range ccys {
		fmt.Printf("  %s\n", ibkr.DisplayMoney(ptf.Cash[ccy], ccy))
	}

	fmt.Println("Positions:")
	positions := slices.Clone(ptf.Positions)
	slices.SortFunc(positions, func(a, b *ibkr.Position) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	for _, p := range positions {
		fmt.Printf("  %-8s %-3s %s\n", p.Symbol, p.Country, p.Qty)
	}
}
