// Package cmd implements the CLI application to reconcile brokerage
// statements into a portfolio.
package cmd

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"github.com/google/subcommands"

	ibkr "github.com/brinvex/brinvex-util-ibkr"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&fetchCmd{}, "statements")

	c.Register(&portfolioCmd{}, "portfolio")
	c.Register(&transactionsCmd{}, "portfolio")
	c.Register(&summariesCmd{}, "portfolio")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var portfolioFile = flag.String("portfolio-file", "portfolio.json", "Path to the portfolio file (JSON format)")

// LoadPortfolio reads the app portfolio file. A missing file yields a nil
// portfolio, letting the caller start a fresh one.
func LoadPortfolio() (*ibkr.Portfolio, error) {
	f, err := os.Open(*portfolioFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("warning, portfolio file does not exist, starting a fresh portfolio")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ibkr.DecodePortfolio(f)
}

// SavePortfolio writes the portfolio back to the app portfolio file.
func SavePortfolio(ptf *ibkr.Portfolio) error {
	f, err := os.Create(*portfolioFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return ibkr.EncodePortfolio(f, ptf)
}
