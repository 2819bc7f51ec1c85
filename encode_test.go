package ibkr

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

func TestTransactionJSON(t *testing.T) {
	buy := validTransaction(TypeBuy)
	data, err := json.Marshal(buy)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	// Fixed field order, numbers unquoted, absent optionals omitted.
	for _, want := range []string{
		`"id":"` + buy.ID + `"`,
		`"type":"BUY"`,
		`"qty":10`,
		`"grossValue":-1900`,
		`"settleDate":"2023-07-13"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("encoded transaction %s missing %s", line, want)
		}
	}
	if strings.Contains(line, "tax") || strings.Contains(line, "bunchId") {
		t.Errorf("encoded transaction %s carries absent fields", line)
	}
	if !strings.HasPrefix(line, `{"id":`) {
		t.Errorf("encoded transaction %s does not lead with the id", line)
	}

	var got Transaction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != buy.ID || got.Type != buy.Type || !got.Qty.Equal(buy.Qty) {
		t.Errorf("round trip mismatch: %v != %v", &got, buy)
	}
	if !got.NetValue.Valid || !got.NetValue.Decimal.Equal(buy.NetValue.Decimal) {
		t.Errorf("net round trip mismatch: %v", got.NetValue)
	}
	if got.Tax.Valid {
		t.Error("absent tax decoded as present")
	}
	if got.SettleDate != buy.SettleDate {
		t.Errorf("settleDate round trip mismatch: %s", got.SettleDate)
	}
}

func TestEncodeTransactionsOrdersByID(t *testing.T) {
	second := validTransaction(TypeBuy)
	first := validTransaction(TypeDeposit)
	first.ID = "2023-07-01/1//CashTran"

	var buf bytes.Buffer
	if err := EncodeTransactions(&buf, []*Transaction{second, first}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], first.ID) || !strings.Contains(lines[1], second.ID) {
		t.Errorf("lines not in identity order:\n%s", buf.String())
	}

	decoded, err := DecodeTransactions(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[0].ID != first.ID || decoded[1].ID != second.ID {
		t.Errorf("decoded transactions out of order: %v", decoded)
	}
}

func TestPortfolioJSONRoundTrip(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	deposit := validTransaction(TypeDeposit)
	buy := validTransaction(TypeBuy)
	buy.ID = deposit.ID + "x"
	applyAll(t, ptf, deposit, buy)

	var buf bytes.Buffer
	if err := EncodePortfolio(&buf, ptf); err != nil {
		t.Fatal(err)
	}

	got, err := DecodePortfolio(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountID != ptf.AccountID || got.PeriodFrom != ptf.PeriodFrom || got.PeriodTo != ptf.PeriodTo {
		t.Errorf("header mismatch: %v != %v", got, ptf)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got.Transactions))
	}
	// Cash and positions are replayed from the ledger, not read back.
	if !got.Cash["USD"].Equal(ptf.Cash["USD"]) {
		t.Errorf("cash USD = %s, want %s", got.Cash["USD"], ptf.Cash["USD"])
	}
	pos, err := got.FindPosition(buy.Symbol)
	if err != nil {
		t.Fatal(err)
	}
	if !pos.Qty.Equal(buy.Qty) {
		t.Errorf("position qty = %s, want %s", pos.Qty, buy.Qty)
	}
}

func TestDecodePortfolio_TamperedCashIsIgnored(t *testing.T) {
	ptf := NewPortfolio("U1234567", date.MustParse("2023-07-01"), date.MustParse("2023-07-31"))
	deposit := validTransaction(TypeDeposit)
	applyAll(t, ptf, deposit)

	var buf bytes.Buffer
	if err := EncodePortfolio(&buf, ptf); err != nil {
		t.Fatal(err)
	}
	doc := strings.Replace(buf.String(), `"USD": 1000`, `"USD": 9999`, 1)

	got, err := DecodePortfolio(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Cash["USD"].Equal(deposit.NetValue.Decimal) {
		t.Errorf("cash USD = %s, want the replayed %s", got.Cash["USD"], deposit.NetValue.Decimal)
	}
}

func TestDecodePortfolio_DuplicateIDFails(t *testing.T) {
	doc := `{
  "accountId": "U1234567",
  "periodFrom": "2023-07-01",
  "periodTo": "2023-07-31",
  "cash": {},
  "positions": [],
  "transactions": [
    {"id": "2023-07-10/1//CashTran", "date": "2023-07-10", "type": "DEPOSIT", "currency": "USD", "grossValue": 100, "netValue": 100, "settleDate": "2023-07-10"},
    {"id": "2023-07-10/1//CashTran", "date": "2023-07-10", "type": "DEPOSIT", "currency": "USD", "grossValue": 100, "netValue": 100, "settleDate": "2023-07-10"}
  ]
}`
	if _, err := DecodePortfolio(strings.NewReader(doc)); err == nil {
		t.Fatal("expected id conflict error")
	}
}
