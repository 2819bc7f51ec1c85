package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	ibkr "github.com/brinvex/brinvex-util-ibkr"
)

type fetchCmd struct {
	token string
	query string
	out   string
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "fetches a statement from the broker's delivery service" }
func (*fetchCmd) Usage() string {
	return `bvx fetch -query <flex-query-id> [-token <token>] [-o <file>]

Fetches one statement document from the broker's statement delivery
service and writes it to the given file, or to stdout.

The access token is taken from the -token flag, or from the IBKR_TOKEN
environment variable when the flag is not set.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.token, "token", "", "Access token for the statement delivery service.")
	f.StringVar(&c.query, "query", "", "Identifier of the statement query to run.")
	f.StringVar(&c.out, "o", "", "File to write the statement to (defaults to stdout).")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	token := c.token
	if token == "" {
		token = os.Getenv("IBKR_TOKEN")
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: no access token, use -token or set IBKR_TOKEN.")
		return subcommands.ExitUsageError
	}
	if c.query == "" {
		fmt.Fprintln(os.Stderr, "Error: -query is required.")
		f.Usage()
		return subcommands.ExitUsageError
	}

	statement, err := ibkr.NewService().FetchStatement(ctx, token, c.query)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.out == "" {
		fmt.Println(statement)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(c.out, []byte(statement), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing statement to %q: %v\n", c.out, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Successfully wrote statement to %s\n", c.out)
	return subcommands.ExitSuccess
}
