package ibkr

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// MarshalJSON renders the transaction with a fixed field order, so encoded
// ledgers diff cleanly. Absent optional values are omitted.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	w := &jsonObjectWriter{}
	w.Append("id", t.ID).
		Append("date", t.Date).
		Append("type", t.Type).
		Optional("country", t.Country).
		Optional("symbol", t.Symbol).
		Optional("isin", t.ISIN).
		Optional("figi", t.FIGI).
		Optional("assetCategory", t.AssetCategory).
		Optional("assetSubCategory", t.AssetSubCategory)
	if !t.Qty.IsZero() {
		w.Append("qty", t.Qty)
	}
	w.Optional("currency", t.Currency)
	if t.Price.Valid {
		w.Append("price", t.Price.Decimal)
	}
	if t.GrossValue.Valid {
		w.Append("grossValue", t.GrossValue.Decimal)
	}
	if t.NetValue.Valid {
		w.Append("netValue", t.NetValue.Decimal)
	}
	if t.Tax.Valid {
		w.Append("tax", t.Tax.Decimal)
	}
	if !t.Fees.IsZero() {
		w.Append("fees", t.Fees)
	}
	w.Append("settleDate", t.SettleDate).
		Optional("bunchId", t.BunchID).
		Optional("description", t.Description)
	return w.MarshalJSON()
}

// transactionJSON mirrors the encoded field set for decoding.
type transactionJSON struct {
	ID               string              `json:"id"`
	Date             Temporal            `json:"date"`
	Type             TransactionType     `json:"type"`
	Country          Country             `json:"country"`
	Symbol           string              `json:"symbol"`
	ISIN             string              `json:"isin"`
	FIGI             string              `json:"figi"`
	AssetCategory    AssetCategory       `json:"assetCategory"`
	AssetSubCategory string              `json:"assetSubCategory"`
	Qty              decimal.Decimal     `json:"qty"`
	Currency         string              `json:"currency"`
	Price            decimal.NullDecimal `json:"price"`
	GrossValue       decimal.NullDecimal `json:"grossValue"`
	NetValue         decimal.NullDecimal `json:"netValue"`
	Tax              decimal.NullDecimal `json:"tax"`
	Fees             decimal.Decimal     `json:"fees"`
	SettleDate       date.Date           `json:"settleDate"`
	BunchID          string              `json:"bunchId"`
	Description      string              `json:"description"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction{
		ID:               raw.ID,
		Date:             raw.Date,
		Type:             raw.Type,
		Country:          raw.Country,
		Symbol:           raw.Symbol,
		ISIN:             raw.ISIN,
		FIGI:             raw.FIGI,
		AssetCategory:    raw.AssetCategory,
		AssetSubCategory: raw.AssetSubCategory,
		Qty:              raw.Qty,
		Currency:         raw.Currency,
		Price:            raw.Price,
		GrossValue:       raw.GrossValue,
		NetValue:         raw.NetValue,
		Tax:              raw.Tax,
		Fees:             raw.Fees,
		SettleDate:       raw.SettleDate,
		BunchID:          raw.BunchID,
		Description:      raw.Description,
	}
	return nil
}

// MarshalJSON renders the position with its holding and the ids of the
// transactions that built it; the transactions themselves live in the ledger.
func (p *Position) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(p.Transactions))
	for _, t := range p.Transactions {
		ids = append(ids, t.ID)
	}
	w := &jsonObjectWriter{}
	w.Optional("country", p.Country).
		Append("symbol", p.Symbol).
		Append("qty", p.Qty).
		Optional("transactionIds", ids)
	return w.MarshalJSON()
}

// MarshalJSON renders the portfolio with a fixed field order and the cash
// balances ordered by currency.
func (ptf *Portfolio) MarshalJSON() ([]byte, error) {
	cash := &jsonObjectWriter{}
	ccys := make([]string, 0, len(ptf.Cash))
	for ccy := range ptf.Cash {
		ccys = append(ccys, ccy)
	}
	slices.Sort(ccys)
	for _, ccy := range ccys {
		cash.Append(ccy, ptf.Cash[ccy])
	}
	w := &jsonObjectWriter{}
	w.Append("accountId", ptf.AccountID).
		Append("periodFrom", ptf.PeriodFrom).
		Append("periodTo", ptf.PeriodTo).
		Append("cash", cash).
		Append("positions", ptf.Positions).
		Append("transactions", ptf.Transactions)
	return w.MarshalJSON()
}

// EncodeTransaction writes one transaction as a JSON line.
func EncodeTransaction(w io.Writer, t *Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", t.ID, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transaction %s: %w", t.ID, err)
	}
	return nil
}

// EncodeTransactions writes the transactions in identity order, one JSON
// line each.
func EncodeTransactions(w io.Writer, trans []*Transaction) error {
	trans = slices.Clone(trans)
	slices.SortFunc(trans, func(a, b *Transaction) int {
		return strings.Compare(a.ID, b.ID)
	})
	for _, t := range trans {
		if err := EncodeTransaction(w, t); err != nil {
			return err
		}
	}
	return nil
}

// DecodeTransactions reads a stream of JSON lines back into transactions,
// returned in identity order.
func DecodeTransactions(r io.Reader) ([]*Transaction, error) {
	var trans []*Transaction
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t := &Transaction{}
		if err := json.Unmarshal(line, t); err != nil {
			return nil, fmt.Errorf("could not decode transaction line %q: %w", string(line), err)
		}
		trans = append(trans, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transactions: %w", err)
	}
	slices.SortFunc(trans, func(a, b *Transaction) int {
		return strings.Compare(a.ID, b.ID)
	})
	return trans, nil
}

// EncodePortfolio persists the portfolio as one JSON document.
func EncodePortfolio(w io.Writer, ptf *Portfolio) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ptf)
}

// DecodePortfolio reads a persisted portfolio and rebuilds its state by
// replaying the ledger. Cash and positions are derived, not trusted from the
// document.
func DecodePortfolio(r io.Reader) (*Portfolio, error) {
	var raw struct {
		AccountID    string         `json:"accountId"`
		PeriodFrom   date.Date      `json:"periodFrom"`
		PeriodTo     date.Date      `json:"periodTo"`
		Transactions []*Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode portfolio: %w", err)
	}
	ptf := NewPortfolio(raw.AccountID, raw.PeriodFrom, raw.PeriodTo)
	slices.SortFunc(raw.Transactions, func(a, b *Transaction) int {
		return strings.Compare(a.ID, b.ID)
	})
	for _, t := range raw.Transactions {
		ptf.Transactions = append(ptf.Transactions, t)
		if err := ptf.ApplyTransaction(t); err != nil {
			return nil, err
		}
	}
	return ptf, nil
}
