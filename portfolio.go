package ibkr

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

// Position is the holding of one security, identified by country and symbol,
// together with the transactions that built it.
type Position struct {
	Country      Country
	Symbol       string
	Qty          decimal.Decimal
	Transactions []*Transaction
}

func (p *Position) String() string {
	return fmt.Sprintf("Position[%s/%s qty=%s]", p.Country, p.Symbol, p.Qty)
}

// Portfolio is the replayed state of one account over a continuous period:
// cash per currency, open positions, and the full transaction ledger in
// identity order. It is a pure fold of the ledger; re-applying the same
// ledger from scratch yields an equal portfolio.
type Portfolio struct {
	AccountID    string
	PeriodFrom   date.Date
	PeriodTo     date.Date
	Cash         map[string]decimal.Decimal
	Positions    []*Position
	Transactions []*Transaction
}

// NewPortfolio returns an empty portfolio for the given account and period.
func NewPortfolio(accountID string, periodFrom, periodTo date.Date) *Portfolio {
	return &Portfolio{
		AccountID:  accountID,
		PeriodFrom: periodFrom,
		PeriodTo:   periodTo,
		Cash:       make(map[string]decimal.Decimal),
	}
}

func (ptf *Portfolio) String() string {
	return fmt.Sprintf("Portfolio[account=%s, period=%s..%s, positions=%d, transactions=%d]",
		ptf.AccountID, ptf.PeriodFrom, ptf.PeriodTo, len(ptf.Positions), len(ptf.Transactions))
}

// FindPosition returns the single position holding symbol. It is an error
// when no position or more than one position matches.
func (ptf *Portfolio) FindPosition(symbol string) (*Position, error) {
	var found *Position
	for _, p := range ptf.Positions {
		if p.Symbol != symbol {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("multiple positions found by symbol %s in %v", symbol, ptf)
		}
		found = p
	}
	if found == nil {
		return nil, fmt.Errorf("could not find position by symbol %s in %v", symbol, ptf)
	}
	return found, nil
}

// ApplyTransaction folds one ledger transaction into the portfolio state.
// The transaction must already be part of the ledger; its id must not occur
// anywhere else in it. An invalid transaction leaves the portfolio unchanged
// and returns an error.
func (ptf *Portfolio) ApplyTransaction(tran *Transaction) error {
	for _, t := range ptf.Transactions {
		if t != tran && t.ID == tran.ID {
			return fmt.Errorf("transaction id conflict: %s", tran.ID)
		}
	}
	if !tran.Type.IsValid(tran) {
		return fmt.Errorf("invalid transaction: %v", tran)
	}

	if tran.NetValue.Valid && !tran.NetValue.Decimal.IsZero() {
		ptf.updateCash(tran.Currency, tran.NetValue.Decimal)
	}

	if !tran.Qty.IsZero() {
		if tran.Type == TypeFxBuy || tran.Type == TypeFxSell {
			// The symbol of an FX transaction is the counter currency.
			ptf.updateCash(tran.Symbol, tran.Qty)
		} else {
			position := ptf.updatePosition(tran.Country, tran.Symbol, tran.Qty)
			position.Transactions = append(position.Transactions, tran)
		}
	}
	return nil
}

func (ptf *Portfolio) updateCash(ccy string, amount decimal.Decimal) {
	if ptf.Cash == nil {
		ptf.Cash = make(map[string]decimal.Decimal)
	}
	ptf.Cash[ccy] = ptf.Cash[ccy].Add(amount)
}

func (ptf *Portfolio) updatePosition(country Country, symbol string, qty decimal.Decimal) *Position {
	for _, p := range ptf.Positions {
		if p.Country == country && p.Symbol == symbol {
			p.Qty = p.Qty.Add(qty)
			return p
		}
	}
	p := &Position{Country: country, Symbol: symbol, Qty: qty}
	ptf.Positions = append(ptf.Positions, p)
	return p
}
