package ibkr

import "fmt"

// Raw record identities. The identity is a pure function of the record's
// timestamp, broker transaction id, its kind-specific secondary id and a kind
// tag. The natural string ordering of identities is consistent with the
// chronological ordering of the underlying events, with the secondary id
// breaking ties, so the same string serves as de-duplication key, sort key
// and canonical transaction id.
//
// Corporate actions deliberately share the Trade kind tag. Trade
// confirmations carry their own tag at the raw stage, but once re-shaped into
// trades for mapping their canonical transactions take the Trade tag, which
// lets a confirmed fill de-duplicate against the activity-report trade of the
// same broker event.

func cashTransactionID(t *CashTransaction) string {
	return fmt.Sprintf("%s/%s/%s/CashTran", t.DateTime, t.TransactionID, t.ActionID)
}

func tradeID(t *Trade) string {
	return fmt.Sprintf("%s/%s/%s/Trade", t.DateTime, t.TradeID, t.IBOrderID)
}

func tradeConfirmID(t *TradeConfirm) string {
	return fmt.Sprintf("%s/%s/%s/TradeConfirm", t.DateTime, t.TradeID, t.OrderID)
}

func corporateActionID(t *CorporateAction) string {
	return fmt.Sprintf("%s/%s/%s/Trade", t.DateTime, t.TransactionID, t.ActionID)
}
