package ibkr

import (
	"github.com/shopspring/decimal"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

// Raw record model: the broker-shaped events carried by a Flex statement
// before any domain classification. Records are value types produced by the
// statement parser and read-only afterwards.

// FlexStatementType distinguishes the report flavors the broker generates.
type FlexStatementType string

const (
	// StatementTypeActivity is a periodic activity Flex statement.
	StatementTypeActivity FlexStatementType = "AF"
	// StatementTypeTradeConfirm is a trade-confirmation Flex statement. It
	// covers only the trades it confirms, so it is exempt from coverage-gap
	// checking.
	StatementTypeTradeConfirm FlexStatementType = "TCF"
)

// CashTransactionType enumerates the cash movement sub-types.
type CashTransactionType string

const (
	DepositsWithdrawals     CashTransactionType = "Deposits/Withdrawals"
	Dividends               CashTransactionType = "Dividends"
	PaymentInLieuOfDividend CashTransactionType = "Payment In Lieu Of Dividends"
	WithholdingTax          CashTransactionType = "Withholding Tax"
	OtherFees               CashTransactionType = "Other Fees"
	BrokerInterestPaid      CashTransactionType = "Broker Interest Paid"
	BrokerFees              CashTransactionType = "Broker Fees"
)

// TradeType enumerates the trade record sub-types.
type TradeType string

const (
	ExchTrade TradeType = "ExchTrade"
	FracShare TradeType = "FracShare"
)

// BuySell is the raw buy/sell flag of a trade.
type BuySell string

const (
	Buy  BuySell = "BUY"
	Sell BuySell = "SELL"
)

// AssetCategory is the broker's asset classification of a record.
type AssetCategory string

const (
	AssetStock AssetCategory = "STK"
	AssetCash  AssetCategory = "CASH"
	AssetFund  AssetCategory = "FUND"
)

// Asset sub-categories seen in statements.
const (
	SubCategoryCash   = "CASH"
	SubCategoryCommon = "COMMON"
	SubCategoryETF    = "ETF"
)

// CorporateActionType enumerates the corporate action sub-types.
type CorporateActionType string

const (
	// ActionMerger is a merger/acquisition ("TC" in the report schema).
	ActionMerger CorporateActionType = "TC"
	// ActionSpinOff is a spin-off ("SO").
	ActionSpinOff CorporateActionType = "SO"
	// ActionSplit is a forward or reverse split ("FS").
	ActionSplit CorporateActionType = "FS"
)

// CashTransaction is a raw cash movement: deposit/withdrawal, dividend,
// withholding tax, fee or broker interest.
type CashTransaction struct {
	Currency             string
	AssetCategory        AssetCategory
	AssetSubCategory     string
	Symbol               string
	Description          string
	SecurityID           string
	FIGI                 string
	ISIN                 string
	ListingExchange      string
	DateTime             Temporal // date-only or zoned, depending on the movement
	SettleDate           date.Date
	ReportDate           date.Date
	Amount               decimal.Decimal
	Type                 CashTransactionType
	IBCommission         decimal.NullDecimal
	IBCommissionCurrency string
	TransactionID        string
	ActionID             string
}

// Trade is a raw trade record: an equity fill, an FX leg encoded as a cash
// trade, or a fractional-share liquidation.
type Trade struct {
	Currency             string
	AssetCategory        AssetCategory
	AssetSubCategory     string
	Symbol               string
	Description          string
	SecurityID           string
	SecurityIDType       string
	FIGI                 string
	ISIN                 string
	ListingExchange      string
	TradeID              string
	ReportDate           date.Date
	DateTime             Temporal // always zoned
	TradeDate            date.Date
	SettleDateTarget     date.Date
	TransactionType      TradeType
	Exchange             string
	Quantity             decimal.Decimal
	TradePrice           decimal.Decimal
	TradeMoney           decimal.Decimal
	Proceeds             decimal.Decimal
	Taxes                decimal.Decimal
	IBCommission         decimal.Decimal
	IBCommissionCurrency string
	NetCash              decimal.Decimal
	Cost                 decimal.Decimal
	BuySell              BuySell
	TransactionID        string
	IBOrderID            string
	OrderTime            Temporal
}

// TradeConfirm is a raw trade confirmation. It carries the same economics as
// a Trade under the confirmation report's field names and is re-shaped into a
// Trade before mapping.
type TradeConfirm struct {
	Currency           string
	AssetCategory      AssetCategory
	AssetSubCategory   string
	Symbol             string
	Description        string
	SecurityID         string
	SecurityIDType     string
	FIGI               string
	ISIN               string
	ListingExchange    string
	TradeID            string
	ReportDate         date.Date
	DateTime           Temporal
	TradeDate          date.Date
	SettleDate         date.Date
	TransactionType    TradeType
	Exchange           string
	Quantity           decimal.Decimal
	Price              decimal.Decimal
	Amount             decimal.Decimal
	Proceeds           decimal.Decimal
	NetCash            decimal.Decimal
	Commission         decimal.Decimal
	CommissionCurrency string
	Tax                decimal.Decimal
	BuySell            BuySell
	OrderID            string
	OrderTime          Temporal
}

// CorporateAction is a raw corporate action record: merger, spin-off or split.
type CorporateAction struct {
	Currency          string
	AssetCategory     AssetCategory
	AssetSubCategory  string
	Symbol            string
	Description       string
	SecurityID        string
	SecurityIDType    string
	FIGI              string
	ISIN              string
	ListingExchange   string
	IssuerCountryCode string
	ReportDate        date.Date
	DateTime          Temporal
	Type              CorporateActionType
	Quantity          decimal.Decimal
	Amount            decimal.Decimal
	Proceeds          decimal.Decimal
	Value             decimal.Decimal
	TransactionID     string
	ActionID          string
}

// EquitySummary is a per-day NAV snapshot carried by activity statements.
type EquitySummary struct {
	ReportDate       date.Date
	Currency         string
	Cash             decimal.Decimal
	Stock            decimal.Decimal
	DividendAccruals decimal.Decimal
	Total            decimal.Decimal
}

// FlexStatement is one raw report batch: the records the broker reports for
// one account over one coverage period.
type FlexStatement struct {
	AccountID     string
	FromDate      date.Date
	ToDate        date.Date
	Type          FlexStatementType
	WhenGenerated Temporal

	CashTransactions []CashTransaction
	Trades           []Trade
	TradeConfirms    []TradeConfirm
	CorporateActions []CorporateAction
	EquitySummaries  []EquitySummary
}
