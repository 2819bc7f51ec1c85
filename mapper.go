package ibkr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// nd wraps a decimal in a present NullDecimal.
func nd(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

// mapCashTransactions turns raw cash movements into canonical transactions.
// Raw movements are processed in identity order, so a dividend always comes
// before the withholding-tax rows that share its action id; the tax rows it
// absorbs are skipped and never reach the unsupported-type fallthrough.
// Movements whose identity is already in knownIDs are dropped from the result.
func mapCashTransactions(knownIDs map[string]bool, rawTrans []CashTransaction) ([]*Transaction, error) {
	rawTrans = slices.Clone(rawTrans)
	slices.SortFunc(rawTrans, func(a, b CashTransaction) int {
		return strings.Compare(cashTransactionID(&a), cashTransactionID(&b))
	})

	byActionID := make(map[string][]int)
	for i := range rawTrans {
		actionID := rawTrans[i].ActionID
		byActionID[actionID] = append(byActionID[actionID], i)
	}

	var result []*Transaction
	skip := make(map[int]bool)
	newIDs := make(map[string]bool)
	for i := range rawTrans {
		if skip[i] {
			continue
		}
		raw := &rawTrans[i]
		tranID := cashTransactionID(raw)
		if newIDs[tranID] {
			return nil, fmt.Errorf("id collision: %s, %v", tranID, raw)
		}
		newIDs[tranID] = true

		fees := decimal.Zero
		if raw.IBCommission.Valid {
			fees = raw.IBCommission.Decimal
		}

		switch raw.Type {
		case DepositsWithdrawals:
			if raw.IBCommissionCurrency != "" && raw.IBCommissionCurrency != raw.Currency {
				return nil, fmt.Errorf("commission currency %s differs from %s: %v", raw.IBCommissionCurrency, raw.Currency, raw)
			}
			typ := TypeWithdrawal
			if raw.Amount.IsPositive() {
				typ = TypeDeposit
			}
			result = append(result, &Transaction{
				ID:         tranID,
				Date:       raw.DateTime,
				Type:       typ,
				Currency:   raw.Currency,
				GrossValue: nd(raw.Amount),
				NetValue:   nd(raw.Amount.Add(fees)),
				Fees:       fees,
				SettleDate: raw.SettleDate,
			})

		case Dividends, PaymentInLieuOfDividend:
			if !strings.Contains(raw.Description, "CASH DIVIDEND") &&
				!strings.Contains(raw.Description, "PAYMENT IN LIEU OF DIVIDEND (Ordinary Dividend)") {
				return nil, fmt.Errorf("unsupported cash transaction: %v", raw)
			}
			taxIdx, err := correlateDividendTax(rawTrans, byActionID[raw.ActionID], i, skip)
			if err != nil {
				return nil, err
			}
			if !fees.IsZero() {
				return nil, fmt.Errorf("unexpected commission on dividend: %v", raw)
			}
			country, err := detectCountryByExchange(raw.ListingExchange)
			if err != nil {
				return nil, err
			}
			typ := TypeCashDividend
			if raw.Type == PaymentInLieuOfDividend {
				typ = TypePaymentInLieuOfDividend
			}
			tran := &Transaction{
				ID:               tranID,
				Date:             raw.DateTime,
				Type:             typ,
				Country:          country,
				Symbol:           strings.TrimSpace(raw.Symbol),
				ISIN:             strings.TrimSpace(raw.ISIN),
				FIGI:             strings.TrimSpace(raw.FIGI),
				AssetCategory:    raw.AssetCategory,
				AssetSubCategory: raw.AssetSubCategory,
				Currency:         raw.Currency,
				GrossValue:       nd(raw.Amount),
				SettleDate:       raw.SettleDate,
			}
			if taxIdx < 0 {
				tran.NetValue = nd(raw.Amount)
				tran.Tax = nd(decimal.Zero)
			} else {
				skip[taxIdx] = true
				taxAmount := rawTrans[taxIdx].Amount
				if !taxAmount.IsNegative() {
					return nil, fmt.Errorf("expected negative tax %s: %v", taxAmount, &rawTrans[taxIdx])
				}
				tran.NetValue = nd(raw.Amount.Add(taxAmount))
				tran.Tax = nd(taxAmount)
			}
			result = append(result, tran)

		case OtherFees, BrokerInterestPaid, BrokerFees:
			country, err := detectCountryByExchange(raw.ListingExchange)
			if err != nil {
				return nil, err
			}
			result = append(result, &Transaction{
				ID:               tranID,
				Date:             raw.DateTime,
				Type:             TypeFee,
				Country:          country,
				Symbol:           strings.TrimSpace(raw.Symbol),
				ISIN:             strings.TrimSpace(raw.ISIN),
				FIGI:             strings.TrimSpace(raw.FIGI),
				AssetCategory:    raw.AssetCategory,
				AssetSubCategory: raw.AssetSubCategory,
				Currency:         raw.Currency,
				GrossValue:       nd(decimal.Zero),
				NetValue:         nd(raw.Amount),
				Tax:              nd(decimal.Zero),
				Fees:             raw.Amount,
				SettleDate:       raw.SettleDate,
			})

		default:
			return nil, fmt.Errorf("unsupported cash transaction: %v", raw)
		}
	}
	return dropKnown(knownIDs, result), nil
}

// correlateDividendTax finds the withholding-tax row belonging to the dividend
// at divIdx among the rows sharing its action id. Brokers occasionally restate
// a tax amount by booking a reversal pair on a later report date; such pairs
// cancel out and are skipped, leaving the final restatement as the tax leg.
// Returns -1 when the dividend has no tax row.
func correlateDividendTax(rawTrans []CashTransaction, group []int, divIdx int, skip map[int]bool) (int, error) {
	var candidates []int
	for _, j := range group {
		if j == divIdx {
			continue
		}
		if rawTrans[j].Type == WithholdingTax {
			candidates = append(candidates, j)
		}
	}
	cancels := func(a, b int) bool {
		return rawTrans[a].SettleDate == rawTrans[b].SettleDate &&
			rawTrans[a].Amount.Neg().Equal(rawTrans[b].Amount)
	}
	switch len(candidates) {
	case 0:
		return -1, nil
	case 1:
		return candidates[0], nil
	case 3:
		if cancels(candidates[0], candidates[1]) {
			skip[candidates[0]] = true
			skip[candidates[1]] = true
			return candidates[2], nil
		}
	case 5:
		if cancels(candidates[0], candidates[1]) &&
			rawTrans[candidates[2]].SettleDate == rawTrans[candidates[0]].SettleDate &&
			cancels(candidates[2], candidates[3]) {
			skip[candidates[0]] = true
			skip[candidates[1]] = true
			skip[candidates[2]] = true
			skip[candidates[3]] = true
			return candidates[4], nil
		}
	}
	return 0, fmt.Errorf("unexpected withholding-tax group of %d rows for action %s", len(candidates), rawTrans[divIdx].ActionID)
}

// mapTrades turns raw executions into canonical transactions. Regular
// security executions map to BUY/SELL, currency-pair executions are re-read
// as an FX_BUY of the bought currency, and fractional-share liquidations map
// to a fee-free SELL. Executions sharing an order id get that id as BunchID.
func mapTrades(knownIDs map[string]bool, rawTrades []Trade) ([]*Transaction, error) {
	rawTrades = slices.Clone(rawTrades)
	slices.SortFunc(rawTrades, func(a, b Trade) int {
		return strings.Compare(tradeID(&a), tradeID(&b))
	})

	orderSize := make(map[string]int)
	for i := range rawTrades {
		orderSize[rawTrades[i].IBOrderID]++
	}

	var result []*Transaction
	newIDs := make(map[string]bool)
	for i := range rawTrades {
		raw := &rawTrades[i]
		tranID := tradeID(raw)
		if newIDs[tranID] {
			return nil, fmt.Errorf("id collision: %s, %v", tranID, raw)
		}
		newIDs[tranID] = true

		var bunchID string
		if orderSize[raw.IBOrderID] > 1 {
			bunchID = raw.IBOrderID
		}

		switch {
		case raw.TransactionType == ExchTrade && raw.AssetCategory != AssetCash:
			country, err := detectCountryByExchange(raw.ListingExchange)
			if err != nil {
				return nil, err
			}
			typ := TypeSell
			if raw.BuySell == Buy {
				typ = TypeBuy
			}
			result = append(result, &Transaction{
				ID:               tranID,
				Date:             raw.DateTime,
				Type:             typ,
				Country:          country,
				Symbol:           strings.TrimSpace(raw.Symbol),
				ISIN:             strings.TrimSpace(raw.ISIN),
				FIGI:             strings.TrimSpace(raw.FIGI),
				AssetCategory:    raw.AssetCategory,
				AssetSubCategory: raw.AssetSubCategory,
				Currency:         raw.Currency,
				Qty:              raw.Quantity,
				Price:            nd(raw.TradePrice),
				GrossValue:       nd(raw.Proceeds),
				NetValue:         nd(raw.NetCash),
				Fees:             raw.IBCommission,
				SettleDate:       raw.SettleDateTarget,
				BunchID:          bunchID,
			})

		case raw.TransactionType == ExchTrade && raw.AssetCategory == AssetCash:
			tran, err := mapFxTrade(raw, tranID, bunchID)
			if err != nil {
				return nil, err
			}
			result = append(result, tran)

		case raw.TransactionType == FracShare && raw.AssetCategory == AssetStock && raw.BuySell == Sell:
			if !raw.IBCommission.IsZero() {
				return nil, fmt.Errorf("unexpected commission on fractional-share trade: %v", raw)
			}
			grossValue := raw.Proceeds
			if !grossValue.IsPositive() {
				return nil, fmt.Errorf("expected positive proceeds %s: %v", grossValue, raw)
			}
			if !grossValue.Equal(raw.TradeMoney.Neg()) || !grossValue.Equal(raw.NetCash) {
				return nil, fmt.Errorf("inconsistent fractional-share amounts: %v", raw)
			}
			if !raw.Taxes.IsZero() {
				return nil, fmt.Errorf("unexpected tax on fractional-share trade: %v", raw)
			}
			country, err := detectCountryByExchange(raw.ListingExchange)
			if err != nil {
				return nil, err
			}
			result = append(result, &Transaction{
				ID:               tranID,
				Date:             raw.DateTime,
				Type:             TypeSell,
				Country:          country,
				Symbol:           raw.Symbol,
				ISIN:             raw.ISIN,
				FIGI:             raw.FIGI,
				AssetCategory:    AssetStock,
				AssetSubCategory: SubCategoryCommon,
				Currency:         raw.Currency,
				Qty:              raw.Quantity,
				Price:            nd(raw.TradePrice),
				GrossValue:       nd(grossValue),
				NetValue:         nd(grossValue),
				Fees:             raw.IBCommission,
				SettleDate:       raw.SettleDateTarget,
				BunchID:          bunchID,
			})

		default:
			return nil, fmt.Errorf("unsupported trade: %v", raw)
		}
	}
	return dropKnown(knownIDs, result), nil
}

// mapFxTrade maps one currency-pair execution. The symbol names the pair as
// "BBB.SSS" seen from the BUY side. Both sides of a conversion come in as an
// FX_BUY of the bought currency, quantified in that currency, with the cash
// effect expressed in the sold currency.
func mapFxTrade(raw *Trade, tranID, bunchID string) (*Transaction, error) {
	sym := raw.Symbol
	if len(sym) != 7 || sym[3] != '.' {
		return nil, fmt.Errorf("unexpected currency pair symbol %q: %v", sym, raw)
	}
	first, second := sym[:3], sym[4:]
	if err := ValidateCurrency(first); err != nil {
		return nil, fmt.Errorf("currency pair %q: %w", sym, err)
	}
	if err := ValidateCurrency(second); err != nil {
		return nil, fmt.Errorf("currency pair %q: %w", sym, err)
	}

	var buyCcy, sellCcy string
	switch raw.BuySell {
	case Sell:
		sellCcy, buyCcy = first, second
		if buyCcy != raw.Currency {
			return nil, fmt.Errorf("currency pair %q does not match currency %s: %v", sym, raw.Currency, raw)
		}
		if sellCcy != raw.IBCommissionCurrency {
			return nil, fmt.Errorf("currency pair %q does not match commission currency %s: %v", sym, raw.IBCommissionCurrency, raw)
		}
		if raw.Currency == raw.IBCommissionCurrency {
			return nil, fmt.Errorf("unsupported single-currency conversion %s: %v", raw.Currency, raw)
		}
		return &Transaction{
			ID:               tranID,
			Date:             raw.DateTime,
			Type:             TypeFxBuy,
			Symbol:           buyCcy,
			AssetCategory:    AssetCash,
			AssetSubCategory: SubCategoryCash,
			Currency:         sellCcy,
			Qty:              raw.Proceeds,
			Price:            nd(raw.TradePrice),
			GrossValue:       nd(raw.Quantity),
			NetValue:         nd(raw.Quantity.Add(raw.IBCommission)),
			Fees:             raw.IBCommission,
			SettleDate:       raw.SettleDateTarget,
			BunchID:          bunchID,
		}, nil
	case Buy:
		buyCcy, sellCcy = first, second
		if sellCcy != raw.Currency {
			return nil, fmt.Errorf("currency pair %q does not match currency %s: %v", sym, raw.Currency, raw)
		}
		if buyCcy != raw.IBCommissionCurrency {
			return nil, fmt.Errorf("currency pair %q does not match commission currency %s: %v", sym, raw.IBCommissionCurrency, raw)
		}
		if raw.Currency == raw.IBCommissionCurrency {
			return nil, fmt.Errorf("unsupported single-currency conversion %s: %v", raw.Currency, raw)
		}
		return &Transaction{
			ID:               tranID,
			Date:             raw.DateTime,
			Type:             TypeFxBuy,
			Symbol:           buyCcy,
			AssetCategory:    AssetCash,
			AssetSubCategory: SubCategoryCash,
			Currency:         raw.Currency,
			Qty:              raw.Quantity,
			Price:            nd(raw.TradePrice),
			GrossValue:       nd(raw.Proceeds),
			NetValue:         nd(raw.Proceeds.Add(raw.IBCommission)),
			Fees:             raw.IBCommission,
			SettleDate:       raw.SettleDateTarget,
			BunchID:          bunchID,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported trade: %v", raw)
	}
}

// mapTradeConfirms re-shapes trade confirmations into executions and maps
// them with mapTrades. The re-shaped record carries the confirmation's order
// id where an execution carries its own, so a confirmation and the execution
// it anticipates produce the same canonical identity.
func mapTradeConfirms(knownIDs map[string]bool, rawConfirms []TradeConfirm) ([]*Transaction, error) {
	trades := make([]Trade, 0, len(rawConfirms))
	for i := range rawConfirms {
		raw := &rawConfirms[i]
		trades = append(trades, Trade{
			Currency:             raw.Currency,
			AssetCategory:        raw.AssetCategory,
			AssetSubCategory:     raw.AssetSubCategory,
			Symbol:               raw.Symbol,
			Description:          raw.Description,
			SecurityID:           raw.SecurityID,
			SecurityIDType:       raw.SecurityIDType,
			ISIN:                 raw.ISIN,
			ListingExchange:      raw.ListingExchange,
			TradeID:              raw.TradeID,
			ReportDate:           raw.ReportDate,
			DateTime:             raw.DateTime,
			SettleDateTarget:     raw.SettleDate,
			TransactionType:      raw.TransactionType,
			Exchange:             raw.Exchange,
			Quantity:             raw.Quantity,
			TradePrice:           raw.Price,
			TradeMoney:           raw.Amount,
			Proceeds:             raw.Proceeds,
			NetCash:              raw.NetCash,
			IBCommission:         raw.Commission,
			IBCommissionCurrency: raw.CommissionCurrency,
			Taxes:                raw.Tax,
			BuySell:              raw.BuySell,
			IBOrderID:            raw.OrderID,
			OrderTime:            raw.OrderTime,
		})
	}
	return mapTrades(knownIDs, trades)
}

// mapCorporateActions turns raw corporate actions into TRANSFORMATION
// transactions. Only acquisitions, spin-offs and forward splits are handled;
// anything else fails loudly rather than silently altering positions.
func mapCorporateActions(knownIDs map[string]bool, rawActions []CorporateAction) ([]*Transaction, error) {
	rawActions = slices.Clone(rawActions)
	slices.SortFunc(rawActions, func(a, b CorporateAction) int {
		return strings.Compare(corporateActionID(&a), corporateActionID(&b))
	})

	var result []*Transaction
	newIDs := make(map[string]bool)
	for i := range rawActions {
		raw := &rawActions[i]
		tranID := corporateActionID(raw)
		if newIDs[tranID] {
			return nil, fmt.Errorf("id collision: %s, %v", tranID, raw)
		}
		newIDs[tranID] = true

		country, err := ParseCountry(raw.IssuerCountryCode)
		if err != nil {
			return nil, fmt.Errorf("corporate action %s: %w", tranID, err)
		}

		tran := &Transaction{
			ID:               tranID,
			Date:             raw.DateTime,
			Type:             TypeTransformation,
			Country:          country,
			Symbol:           strings.TrimSpace(raw.Symbol),
			ISIN:             strings.TrimSpace(raw.ISIN),
			FIGI:             strings.TrimSpace(raw.FIGI),
			AssetCategory:    raw.AssetCategory,
			AssetSubCategory: raw.AssetSubCategory,
			Currency:         raw.Currency,
			Qty:              raw.Quantity,
			Tax:              nd(decimal.Zero),
			SettleDate:       raw.ReportDate,
			Description:      raw.Description,
		}
		switch {
		case raw.Type == ActionMerger && strings.Contains(raw.Description, "MERGED(Acquisition)"):
			if raw.Quantity.IsZero() {
				return nil, fmt.Errorf("unsupported corporate action: %v", raw)
			}
			tran.Price = nd(raw.Proceeds.DivRound(raw.Quantity.Abs(), 2))
			tran.GrossValue = nd(raw.Proceeds)
			tran.NetValue = nd(raw.Proceeds)

		case raw.Type == ActionSpinOff && strings.Contains(raw.Description, "SPINOFF"),
			raw.Type == ActionSplit && strings.Contains(raw.Description, "SPLIT"):
			if !raw.Amount.IsZero() || !raw.Proceeds.IsZero() || !raw.Value.IsZero() {
				return nil, fmt.Errorf("unexpected amounts on corporate action: %v", raw)
			}
			tran.Price = nd(decimal.Zero)
			tran.GrossValue = nd(decimal.Zero)
			tran.NetValue = nd(decimal.Zero)

		default:
			return nil, fmt.Errorf("unsupported corporate action: %v", raw)
		}
		result = append(result, tran)
	}
	return dropKnown(knownIDs, result), nil
}

func dropKnown(knownIDs map[string]bool, trans []*Transaction) []*Transaction {
	kept := trans[:0]
	for _, t := range trans {
		if !knownIDs[t.ID] {
			kept = append(kept, t)
		}
	}
	return kept
}
