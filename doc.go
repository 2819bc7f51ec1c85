// Package ibkr reconciles Interactive Brokers Flex statements into a
// portfolio ledger. It is designed around deterministic record identities,
// making statement ingestion idempotent: feeding the same or overlapping
// statements any number of times yields the same portfolio.
//
// The pipeline has four stages:
//   - Parsing: reading statement XML documents into raw records (cash
//     movements, executions, trade confirmations, corporate actions, equity
//     summaries).
//   - Merging: folding overlapping statement batches into one continuous
//     batch, de-duplicating records by identity and refusing gaps in period
//     coverage.
//   - Mapping: classifying raw records into a closed set of canonical
//     transaction types, correlating dividends with their withholding-tax
//     rows and splitting currency conversions into explicit FX legs.
//   - Replay: validating each canonical transaction against its type's rule
//     set and folding it into per-currency cash balances and per-market
//     positions.
//
// This package serves as the foundational logic for the `bvx` command-line
// tool, which fetches statements from the broker's delivery service and
// maintains a portfolio file across statement imports.
package ibkr
