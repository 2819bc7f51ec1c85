package ibkr

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

// XMLParser reads statement documents in the broker's query-response XML
// format. Records are attributes-only elements, so the documents are walked
// token by token instead of being unmarshalled into a fixed tree.
type XMLParser struct{}

// ParseActivities reads one statement document, collecting its cash
// movements, executions, trade confirmations and corporate actions.
func (XMLParser) ParseActivities(content string) (*FlexStatement, error) {
	var statement *FlexStatement
	var statementType FlexStatementType

	decoder := xml.NewDecoder(strings.NewReader(content))
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "FlexQueryResponse":
			statementType, err = parseStatementType(attr(start, "type"))
			if err != nil {
				return nil, err
			}
		case "FlexStatement":
			if statement != nil {
				return nil, fmt.Errorf("unexpected second FlexStatement element")
			}
			statement, err = parseStatementHeader(start, statementType)
			if err != nil {
				return nil, err
			}
		case "CashTransaction":
			if statement == nil {
				return nil, fmt.Errorf("CashTransaction element outside FlexStatement")
			}
			raw, err := parseCashTransaction(start)
			if err != nil {
				return nil, err
			}
			statement.CashTransactions = append(statement.CashTransactions, raw)
		case "Trade":
			if statement == nil {
				return nil, fmt.Errorf("Trade element outside FlexStatement")
			}
			raw, err := parseTrade(start)
			if err != nil {
				return nil, err
			}
			statement.Trades = append(statement.Trades, raw)
		case "TradeConfirm":
			if statement == nil {
				return nil, fmt.Errorf("TradeConfirm element outside FlexStatement")
			}
			raw, err := parseTradeConfirm(start)
			if err != nil {
				return nil, err
			}
			statement.TradeConfirms = append(statement.TradeConfirms, raw)
		case "CorporateAction":
			if statement == nil {
				return nil, fmt.Errorf("CorporateAction element outside FlexStatement")
			}
			raw, err := parseCorporateAction(start)
			if err != nil {
				return nil, err
			}
			statement.CorporateActions = append(statement.CorporateActions, raw)
		}
	}
	if statement == nil {
		return nil, fmt.Errorf("no FlexStatement element found")
	}
	return statement, nil
}

// ParseEquitySummaries reads one statement document, collecting only its
// per-day equity summaries.
func (XMLParser) ParseEquitySummaries(content string) (*FlexStatement, error) {
	var statement *FlexStatement
	var statementType FlexStatementType

	decoder := xml.NewDecoder(strings.NewReader(content))
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "FlexQueryResponse":
			statementType, err = parseStatementType(attr(start, "type"))
			if err != nil {
				return nil, err
			}
		case "FlexStatement":
			if statement != nil {
				return nil, fmt.Errorf("unexpected second FlexStatement element")
			}
			statement, err = parseStatementHeader(start, statementType)
			if err != nil {
				return nil, err
			}
		case "EquitySummaryByReportDateInBase":
			if statement == nil {
				return nil, fmt.Errorf("EquitySummaryByReportDateInBase element outside FlexStatement")
			}
			raw, err := parseEquitySummary(start)
			if err != nil {
				return nil, err
			}
			statement.EquitySummaries = append(statement.EquitySummaries, raw)
		}
	}
	if statement == nil {
		return nil, fmt.Errorf("no FlexStatement element found")
	}
	return statement, nil
}

func parseStatementHeader(start xml.StartElement, statementType FlexStatementType) (*FlexStatement, error) {
	r := newElemReader(start)
	statement := &FlexStatement{
		AccountID:     r.str("accountId"),
		FromDate:      r.date("fromDate"),
		ToDate:        r.date("toDate"),
		WhenGenerated: r.dateTime("whenGenerated"),
		Type:          statementType,
	}
	if r.err != nil {
		return nil, fmt.Errorf("FlexStatement: %w", r.err)
	}
	if statement.AccountID == "" {
		return nil, fmt.Errorf("FlexStatement: missing accountId")
	}
	return statement, nil
}

func parseCashTransaction(start xml.StartElement) (CashTransaction, error) {
	r := newElemReader(start)
	raw := CashTransaction{
		Currency:        r.currency("currency"),
		Symbol:          r.str("symbol"),
		ListingExchange: r.str("listingExchange"),
		Description:     r.str("description"),
		FIGI:            r.str("figi"),
		ISIN:            r.str("isin"),
		DateTime:        r.temporal("dateTime"),
		SettleDate:      r.date("settleDate"),
		Amount:          r.decimal("amount"),
		TransactionID:   r.str("transactionID"),
		ReportDate:      r.date("reportDate"),
		ActionID:        r.str("actionID"),
	}
	raw.AssetCategory = r.assetCategory()
	raw.AssetSubCategory = r.assetSubCategory(raw.AssetCategory)
	raw.Type = r.cashTransactionType()
	if r.err != nil {
		return CashTransaction{}, fmt.Errorf("CashTransaction: %w", r.err)
	}
	return raw, nil
}

func parseTrade(start xml.StartElement) (Trade, error) {
	r := newElemReader(start)
	raw := Trade{
		Currency:             r.currency("currency"),
		Symbol:               r.str("symbol"),
		Description:          r.str("description"),
		SecurityID:           r.str("securityID"),
		SecurityIDType:       r.str("securityIDType"),
		FIGI:                 r.str("figi"),
		ISIN:                 r.str("isin"),
		ListingExchange:      r.str("listingExchange"),
		TradeID:              r.str("tradeID"),
		ReportDate:           r.date("reportDate"),
		DateTime:             r.dateTime("dateTime"),
		TradeDate:            r.date("tradeDate"),
		SettleDateTarget:     r.date("settleDateTarget"),
		TransactionType:      r.tradeType(),
		Exchange:             r.str("exchange"),
		Quantity:             r.decimal("quantity"),
		TradePrice:           r.decimal("tradePrice"),
		TradeMoney:           r.decimal("tradeMoney"),
		Proceeds:             r.decimal("proceeds"),
		Taxes:                r.decimal("taxes"),
		IBCommission:         r.decimal("ibCommission"),
		IBCommissionCurrency: r.currency("ibCommissionCurrency"),
		NetCash:              r.decimal("netCash"),
		Cost:                 r.decimal("cost"),
		BuySell:              r.buySell(),
		TransactionID:        r.str("transactionID"),
		IBOrderID:            r.str("ibOrderID"),
		OrderTime:            r.dateTime("orderTime"),
	}
	raw.AssetCategory = r.assetCategory()
	raw.AssetSubCategory = r.assetSubCategory(raw.AssetCategory)
	if r.err != nil {
		return Trade{}, fmt.Errorf("Trade: %w", r.err)
	}
	return raw, nil
}

func parseTradeConfirm(start xml.StartElement) (TradeConfirm, error) {
	r := newElemReader(start)
	raw := TradeConfirm{
		Currency:           r.currency("currency"),
		Symbol:             r.str("symbol"),
		Description:        r.str("description"),
		SecurityID:         r.str("securityID"),
		SecurityIDType:     r.str("securityIDType"),
		FIGI:               r.str("figi"),
		ISIN:               r.str("isin"),
		ListingExchange:    r.str("listingExchange"),
		TradeID:            r.str("tradeID"),
		ReportDate:         r.date("reportDate"),
		DateTime:           r.dateTime("dateTime"),
		TradeDate:          r.date("tradeDate"),
		SettleDate:         r.date("settleDate"),
		TransactionType:    r.tradeType(),
		Exchange:           r.str("exchange"),
		Quantity:           r.decimal("quantity"),
		Price:              r.decimal("price"),
		Amount:             r.decimal("amount"),
		Proceeds:           r.decimal("proceeds"),
		NetCash:            r.decimal("netCash"),
		Commission:         r.decimal("commission"),
		CommissionCurrency: r.currency("commissionCurrency"),
		Tax:                r.decimal("tax"),
		BuySell:            r.buySell(),
		OrderID:            r.str("orderID"),
		OrderTime:          r.dateTime("orderTime"),
	}
	raw.AssetCategory = r.assetCategory()
	raw.AssetSubCategory = r.assetSubCategory(raw.AssetCategory)
	if r.err != nil {
		return TradeConfirm{}, fmt.Errorf("TradeConfirm: %w", r.err)
	}
	return raw, nil
}

func parseCorporateAction(start xml.StartElement) (CorporateAction, error) {
	r := newElemReader(start)
	raw := CorporateAction{
		Currency:          r.currency("currency"),
		Symbol:            r.str("symbol"),
		Description:       r.str("description"),
		SecurityID:        r.str("securityID"),
		SecurityIDType:    r.str("securityIDType"),
		FIGI:              r.str("figi"),
		ISIN:              r.str("isin"),
		ListingExchange:   r.str("listingExchange"),
		IssuerCountryCode: r.str("issuerCountryCode"),
		ReportDate:        r.date("reportDate"),
		DateTime:          r.dateTime("dateTime"),
		Type:              r.corporateActionType(),
		Quantity:          r.decimal("quantity"),
		Amount:            r.decimal("amount"),
		Proceeds:          r.decimal("proceeds"),
		Value:             r.decimal("value"),
		TransactionID:     r.str("transactionID"),
		ActionID:          r.str("actionID"),
	}
	raw.AssetCategory = r.assetCategory()
	raw.AssetSubCategory = r.assetSubCategory(raw.AssetCategory)
	if r.err != nil {
		return CorporateAction{}, fmt.Errorf("CorporateAction: %w", r.err)
	}
	return raw, nil
}

func parseEquitySummary(start xml.StartElement) (EquitySummary, error) {
	r := newElemReader(start)
	raw := EquitySummary{
		Currency:         r.currency("currency"),
		ReportDate:       r.date("reportDate"),
		Cash:             r.decimal("cash"),
		Stock:            r.decimal("stock"),
		DividendAccruals: r.decimal("dividendAccruals"),
		Total:            r.decimal("total"),
	}
	if r.err != nil {
		return EquitySummary{}, fmt.Errorf("EquitySummaryByReportDateInBase: %w", r.err)
	}
	return raw, nil
}

func parseStatementType(s string) (FlexStatementType, error) {
	switch FlexStatementType(s) {
	case StatementTypeActivity, StatementTypeTradeConfirm:
		return FlexStatementType(s), nil
	default:
		return "", fmt.Errorf("unexpected statement type %q", s)
	}
}

// elemReader pulls typed attribute values out of one element, remembering
// the first conversion error.
type elemReader struct {
	attrs map[string]string
	err   error
}

func newElemReader(start xml.StartElement) *elemReader {
	attrs := make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		attrs[a.Name.Local] = a.Value
	}
	return &elemReader{attrs: attrs}
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (r *elemReader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("attribute %s: %w", name, err)
	}
}

func (r *elemReader) str(name string) string {
	return r.attrs[name]
}

func (r *elemReader) decimal(name string) decimal.Decimal {
	s := r.attrs[name]
	if s == "" {
		r.fail(name, fmt.Errorf("missing numeric value"))
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		r.fail(name, err)
		return decimal.Zero
	}
	return v
}

func (r *elemReader) date(name string) date.Date {
	s := r.attrs[name]
	if s == "" {
		return date.Date{}
	}
	d, err := date.ParseCompact(s)
	if err != nil {
		r.fail(name, err)
		return date.Date{}
	}
	return d
}

// temporal reads a value that is a zoned instant or a plain day, depending
// on how the broker booked the record.
func (r *elemReader) temporal(name string) Temporal {
	s := r.attrs[name]
	if s == "" {
		return Temporal{}
	}
	if strings.ContainsRune(s, ';') {
		t, err := parseStatementTime(s)
		if err != nil {
			r.fail(name, err)
			return Temporal{}
		}
		return At(t)
	}
	d, err := date.ParseCompact(s)
	if err != nil {
		r.fail(name, err)
		return Temporal{}
	}
	return On(d)
}

// dateTime reads a value that must be a zoned instant.
func (r *elemReader) dateTime(name string) Temporal {
	s := r.attrs[name]
	if s == "" {
		return Temporal{}
	}
	if !strings.ContainsRune(s, ';') {
		r.fail(name, fmt.Errorf("unexpected format %q", s))
		return Temporal{}
	}
	t, err := parseStatementTime(s)
	if err != nil {
		r.fail(name, err)
		return Temporal{}
	}
	return At(t)
}

func (r *elemReader) currency(name string) string {
	s := r.attrs[name]
	if s == "" {
		return ""
	}
	if err := ValidateCurrency(s); err != nil {
		r.fail(name, err)
		return ""
	}
	return s
}

func (r *elemReader) cashTransactionType() CashTransactionType {
	s := r.attrs["type"]
	if s == "" {
		return ""
	}
	switch t := CashTransactionType(s); t {
	case DepositsWithdrawals, WithholdingTax, Dividends, PaymentInLieuOfDividend,
		OtherFees, BrokerInterestPaid, BrokerFees:
		return t
	default:
		r.fail("type", fmt.Errorf("unexpected value %q", s))
		return ""
	}
}

func (r *elemReader) tradeType() TradeType {
	s := r.attrs["transactionType"]
	if s == "" {
		return ""
	}
	switch t := TradeType(s); t {
	case ExchTrade, FracShare:
		return t
	default:
		r.fail("transactionType", fmt.Errorf("unexpected value %q", s))
		return ""
	}
}

func (r *elemReader) corporateActionType() CorporateActionType {
	s := r.attrs["type"]
	if s == "" {
		return ""
	}
	switch t := CorporateActionType(s); t {
	case ActionMerger, ActionSpinOff, ActionSplit:
		return t
	default:
		r.fail("type", fmt.Errorf("unexpected value %q", s))
		return ""
	}
}

func (r *elemReader) buySell() BuySell {
	s := r.attrs["buySell"]
	if s == "" {
		return ""
	}
	switch b := BuySell(s); b {
	case Buy, Sell:
		return b
	default:
		r.fail("buySell", fmt.Errorf("unexpected value %q", s))
		return ""
	}
}

func (r *elemReader) assetCategory() AssetCategory {
	s := r.attrs["assetCategory"]
	if s == "" {
		return ""
	}
	switch c := AssetCategory(s); c {
	case AssetStock, AssetCash, AssetFund:
		return c
	default:
		r.fail("assetCategory", fmt.Errorf("unexpected value %q", s))
		return ""
	}
}

// assetSubCategory: cash records carry no sub-category attribute and get the
// implied CASH, other categories keep what the statement says.
func (r *elemReader) assetSubCategory(cat AssetCategory) string {
	s := r.attrs["subCategory"]
	switch {
	case cat == "":
		if s != "" {
			r.fail("subCategory", fmt.Errorf("unexpected value %q without assetCategory", s))
		}
		return ""
	case cat == AssetCash:
		if s != "" {
			r.fail("subCategory", fmt.Errorf("unexpected value %q for cash", s))
		}
		return SubCategoryCash
	default:
		return s
	}
}

// statementZones resolves the zone abbreviations the broker stamps on
// instants. Abbreviations alone do not identify a zone, so the mapping is a
// fixed table of the ones actually seen in statements.
var statementZones = map[string]*time.Location{
	"EST":  time.FixedZone("EST", -5*60*60),
	"EDT":  time.FixedZone("EDT", -4*60*60),
	"CST":  time.FixedZone("CST", -6*60*60),
	"CDT":  time.FixedZone("CDT", -5*60*60),
	"MST":  time.FixedZone("MST", -7*60*60),
	"MDT":  time.FixedZone("MDT", -6*60*60),
	"PST":  time.FixedZone("PST", -8*60*60),
	"PDT":  time.FixedZone("PDT", -7*60*60),
	"GMT":  time.UTC,
	"UTC":  time.UTC,
	"BST":  time.FixedZone("BST", 60*60),
	"CET":  time.FixedZone("CET", 60*60),
	"CEST": time.FixedZone("CEST", 2*60*60),
}

// parseStatementTime reads an instant of the form "20230727;052240 EDT".
func parseStatementTime(s string) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("unexpected instant %q", s)
	}
	loc, ok := statementZones[fields[1]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown time zone %q in %q", fields[1], s)
	}
	t, err := time.ParseInLocation("20060102;150405", fields[0], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected instant %q: %w", s, err)
	}
	return t, nil
}
