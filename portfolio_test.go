package ibkr

import (
	"testing"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

func applyAll(t *testing.T, ptf *Portfolio, trans ...*Transaction) {
	t.Helper()
	for _, tran := range trans {
		ptf.Transactions = append(ptf.Transactions, tran)
		if err := ptf.ApplyTransaction(tran); err != nil {
			t.Fatal(err)
		}
	}
}

func TestApplyTransaction_CashAndPositions(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))

	deposit := validTransaction(TypeDeposit)
	buy := validTransaction(TypeBuy)
	buy.ID = deposit.ID + "x" // distinct ids
	applyAll(t, ptf, deposit, buy)

	if got := ptf.Cash["USD"]; !got.Equal(deposit.NetValue.Decimal.Add(buy.NetValue.Decimal)) {
		t.Errorf("cash USD = %s, want the sum of both net values", got)
	}
	pos, err := ptf.FindPosition(buy.Symbol)
	if err != nil {
		t.Fatal(err)
	}
	if !pos.Qty.Equal(buy.Qty) {
		t.Errorf("position qty = %s, want %s", pos.Qty, buy.Qty)
	}
	if len(pos.Transactions) != 1 || pos.Transactions[0] != buy {
		t.Errorf("position transactions = %v, want the buy", pos.Transactions)
	}
}

func TestApplyTransaction_FxMovesCashOnly(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	fx := validTransaction(TypeFxBuy)
	applyAll(t, ptf, fx)

	if len(ptf.Positions) != 0 {
		t.Errorf("positions = %v, want none for an FX conversion", ptf.Positions)
	}
	if got := ptf.Cash[fx.Symbol]; !got.Equal(fx.Qty) {
		t.Errorf("cash %s = %s, want bought amount %s", fx.Symbol, got, fx.Qty)
	}
	if got := ptf.Cash[fx.Currency]; !got.Equal(fx.NetValue.Decimal) {
		t.Errorf("cash %s = %s, want %s", fx.Currency, got, fx.NetValue.Decimal)
	}
}

func TestApplyTransaction_BuyThenSellClosesPosition(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	buy := validTransaction(TypeBuy)
	sell := validTransaction(TypeSell)
	sell.Qty = buy.Qty.Neg()
	sell.ID = buy.ID + "x"
	applyAll(t, ptf, buy, sell)

	pos, err := ptf.FindPosition(buy.Symbol)
	if err != nil {
		t.Fatal(err)
	}
	if !pos.Qty.IsZero() {
		t.Errorf("position qty = %s, want 0", pos.Qty)
	}
	if len(pos.Transactions) != 2 {
		t.Errorf("position transactions = %d, want 2", len(pos.Transactions))
	}
}

func TestApplyTransaction_IDConflict(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	first := validTransaction(TypeDeposit)
	applyAll(t, ptf, first)

	dup := validTransaction(TypeDeposit)
	ptf.Transactions = append(ptf.Transactions, dup)
	if err := ptf.ApplyTransaction(dup); err == nil {
		t.Fatal("expected id conflict error")
	}
}

func TestApplyTransaction_InvalidRejected(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	bad := validTransaction(TypeBuy)
	bad.Qty = bad.Qty.Neg()
	ptf.Transactions = append(ptf.Transactions, bad)
	if err := ptf.ApplyTransaction(bad); err == nil {
		t.Fatal("expected invalid transaction error")
	}
	if len(ptf.Cash) != 0 || len(ptf.Positions) != 0 {
		t.Errorf("portfolio changed by a rejected transaction: %v", ptf)
	}
}

func TestFindPosition(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	if _, err := ptf.FindPosition("AAPL"); err == nil {
		t.Error("expected error for a missing position")
	}
	ptf.Positions = append(ptf.Positions,
		&Position{Country: US, Symbol: "AAPL"},
		&Position{Country: DE, Symbol: "AAPL"},
	)
	if _, err := ptf.FindPosition("AAPL"); err == nil {
		t.Error("expected error for an ambiguous symbol")
	}
}
