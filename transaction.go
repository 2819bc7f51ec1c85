package ibkr

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

// TransactionType is the closed set of canonical transaction types.
type TransactionType string

const (
	TypeBuy                      TransactionType = "BUY"
	TypeSell                     TransactionType = "SELL"
	TypeDeposit                  TransactionType = "DEPOSIT"
	TypeWithdrawal               TransactionType = "WITHDRAWAL"
	TypeCashDividend             TransactionType = "CASH_DIVIDEND"
	TypePaymentInLieuOfDividend  TransactionType = "PAYMENT_IN_LIEU_OF_DIVIDEND"
	TypeFxBuy                    TransactionType = "FX_BUY"
	TypeFxSell                   TransactionType = "FX_SELL"
	TypeFee                      TransactionType = "FEE"
	TypeTax                      TransactionType = "TAX"
	TypeTransformation           TransactionType = "TRANSFORMATION"
)

// Transaction is the canonical, validated representation of one economic
// event in the ledger. Its ID is the deterministic identity of the raw record
// it was mapped from, so ledger order equals identity order.
//
// Sign conventions: fees and tax are costs and therefore zero or negative;
// quantity is signed (negative for disposals); for pure-cash events quantity
// is zero. GrossValue and NetValue are both present or both absent, and when
// present reconcile as gross + fees + tax ≈ net.
type Transaction struct {
	ID               string
	Date             Temporal
	Type             TransactionType
	Country          Country
	Symbol           string
	ISIN             string
	FIGI             string
	AssetCategory    AssetCategory
	AssetSubCategory string
	Qty              decimal.Decimal
	Currency         string
	Price            decimal.NullDecimal
	GrossValue       decimal.NullDecimal
	NetValue         decimal.NullDecimal
	Tax              decimal.NullDecimal
	Fees             decimal.Decimal
	SettleDate       date.Date
	BunchID          string
	Description      string
}

func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction[id=%s, type=%s, country=%s, symbol=%s, qty=%s, ccy=%s, gross=%s, net=%s, tax=%s, fees=%s, settle=%s]",
		t.ID, t.Type, t.Country, t.Symbol, t.Qty, t.Currency,
		nullDecimalString(t.GrossValue), nullDecimalString(t.NetValue), nullDecimalString(t.Tax),
		t.Fees, t.SettleDate)
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "<nil>"
	}
	return d.Decimal.String()
}

// tax returns the tax amount, treating an absent tax as zero.
func (t *Transaction) tax() decimal.Decimal {
	if !t.Tax.Valid {
		return decimal.Zero
	}
	return t.Tax.Decimal
}

// net returns the net value, treating an absent net as zero. Sign predicates
// reject the zero, so an absent net never passes a strict-sign rule.
func (t *Transaction) net() decimal.Decimal {
	if !t.NetValue.Valid {
		return decimal.Zero
	}
	return t.NetValue.Decimal
}

// numberDiffTolerance is the absolute tolerance of the universal
// gross/net/fees/tax reconciliation check, in currency units.
var numberDiffTolerance = decimal.NewFromFloat(0.005)

type predicate func(*Transaction) bool

// predicates returns the structural rule set of a transaction type. The rule
// sets are a closed lookup, not behavior on the type, so each set can be unit
// tested on its own.
func predicates(tt TransactionType) []predicate {
	switch tt {
	case TypeBuy:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsNegative() },
			func(t *Transaction) bool { return t.Symbol != "" },
			func(t *Transaction) bool { return t.Qty.IsPositive() },
			func(t *Transaction) bool { return t.Price.Valid && t.Price.Decimal.IsPositive() },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	case TypeSell:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsPositive() },
			func(t *Transaction) bool { return t.Symbol != "" },
			func(t *Transaction) bool { return t.Qty.IsNegative() },
			func(t *Transaction) bool { return t.Price.Valid && t.Price.Decimal.IsPositive() },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return !t.tax().IsPositive() },
		}
	case TypeDeposit:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsPositive() },
			func(t *Transaction) bool { return t.Symbol == "" },
			func(t *Transaction) bool { return t.Qty.IsZero() },
			func(t *Transaction) bool { return !t.Price.Valid },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	case TypeWithdrawal:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsNegative() },
			func(t *Transaction) bool { return t.Symbol == "" },
			func(t *Transaction) bool { return t.Qty.IsZero() },
			func(t *Transaction) bool { return !t.Price.Valid },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	case TypeCashDividend, TypePaymentInLieuOfDividend:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsPositive() },
			func(t *Transaction) bool { return t.Symbol != "" },
			func(t *Transaction) bool { return t.Qty.IsZero() },
			func(t *Transaction) bool { return !t.Price.Valid },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return !t.tax().IsPositive() },
		}
	case TypeFxBuy:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsNegative() },
			func(t *Transaction) bool { return t.Symbol != "" },
			func(t *Transaction) bool { return t.Qty.IsPositive() },
			func(t *Transaction) bool { return t.Price.Valid && t.Price.Decimal.IsPositive() },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	case TypeFxSell:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsPositive() },
			func(t *Transaction) bool { return t.Symbol != "" },
			func(t *Transaction) bool { return t.Qty.IsNegative() },
			func(t *Transaction) bool { return t.Price.Valid && t.Price.Decimal.IsPositive() },
			func(t *Transaction) bool { return !t.Fees.IsPositive() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	case TypeFee:
		return []predicate{
			func(t *Transaction) bool { return t.Qty.IsZero() },
			func(t *Transaction) bool { return !t.Price.Valid },
			func(t *Transaction) bool { return !t.Fees.IsZero() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	case TypeTax:
		return []predicate{
			func(t *Transaction) bool { return t.net().IsNegative() },
			func(t *Transaction) bool { return t.Qty.IsZero() },
			func(t *Transaction) bool { return !t.Price.Valid },
			func(t *Transaction) bool { return t.Fees.IsZero() },
			func(t *Transaction) bool { return t.Tax.Valid && t.Tax.Decimal.IsNegative() },
		}
	case TypeTransformation:
		return []predicate{
			func(t *Transaction) bool { return t.Symbol != "" },
			func(t *Transaction) bool { return t.Fees.IsZero() },
			func(t *Transaction) bool { return t.tax().IsZero() },
		}
	default:
		return nil
	}
}

// IsValid reports whether t is structurally consistent with its declared
// type: the universal preconditions, the type's predicate list, and the
// gross/net reconciliation must all hold.
func (tt TransactionType) IsValid(t *Transaction) bool {
	if t.Date.IsZero() {
		return false
	}
	if t.SettleDate.IsZero() {
		return false
	}
	if t.Type == "" {
		return false
	}
	if t.Type != TypeFxBuy && t.Type != TypeFxSell {
		// Symbol and country identify a listed security together.
		if (t.Symbol != "") != (t.Country != "") {
			return false
		}
	}
	if t.NetValue.Valid && t.Currency == "" {
		return false
	}
	preds := predicates(tt)
	if preds == nil {
		return false
	}
	for _, p := range preds {
		if !p(t) {
			return false
		}
	}
	return grossNetIsValid(t)
}

func grossNetIsValid(t *Transaction) bool {
	if !t.GrossValue.Valid {
		return !t.NetValue.Valid
	}
	if !t.NetValue.Valid {
		return false
	}
	diff := t.GrossValue.Decimal.Add(t.Fees).Add(t.tax()).Sub(t.NetValue.Decimal)
	return diff.Abs().LessThan(numberDiffTolerance)
}
