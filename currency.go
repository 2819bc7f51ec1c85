package ibkr

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ValidateCurrency checks that code names a real ISO 4217 currency.
func ValidateCurrency(code string) error {
	if money.GetCurrency(code) == nil {
		return fmt.Errorf("unknown currency code %q", code)
	}
	return nil
}

// DisplayMoney formats an exact decimal amount in its currency's display
// convention, e.g. "$1,234.50". Amounts finer than the currency's minor unit
// are rounded half away from zero.
func DisplayMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.String() + " " + currency
	}
	shifted := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(shifted.IntPart(), currency).Display()
}
