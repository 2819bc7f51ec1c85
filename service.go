package ibkr

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

// StatementParser reads one statement document into its raw form.
type StatementParser interface {
	ParseActivities(content string) (*FlexStatement, error)
	ParseEquitySummaries(content string) (*FlexStatement, error)
}

// Service is the entry point of the reconciliation pipeline: it parses
// statement documents, merges overlapping batches, and replays the resulting
// transactions into a portfolio.
type Service struct {
	parser       StatementParser
	flexQueryURL string
}

// NewService returns a service using the default statement parser and the
// broker's statement delivery endpoint.
func NewService() *Service {
	return &Service{
		parser:       XMLParser{},
		flexQueryURL: defaultFlexQueryURL,
	}
}

// NewServiceWith returns a service with an explicit parser and delivery
// endpoint, for tests and non-default deployments.
func NewServiceWith(parser StatementParser, flexQueryURL string) *Service {
	return &Service{parser: parser, flexQueryURL: flexQueryURL}
}

// ParseActivities parses the given statement documents and merges them into
// one continuous batch. Records appearing in several overlapping statements
// are kept once, first occurrence wins; the merged record lists come out in
// identity order.
func (s *Service) ParseActivities(contents ...string) (*FlexStatement, error) {
	statements, err := s.parseAll(s.parser.ParseActivities, contents)
	if err != nil {
		return nil, err
	}
	return mergeActivities(statements)
}

// ParseActivitiesFiles is ParseActivities over statement files.
func (s *Service) ParseActivitiesFiles(paths ...string) (*FlexStatement, error) {
	contents, err := readAll(paths)
	if err != nil {
		return nil, err
	}
	return s.ParseActivities(contents...)
}

// ParseEquitySummaries parses the given statement documents and merges their
// per-day equity summaries, keeping one summary per report date.
func (s *Service) ParseEquitySummaries(contents ...string) (*FlexStatement, error) {
	statements, err := s.parseAll(s.parser.ParseEquitySummaries, contents)
	if err != nil {
		return nil, err
	}
	return mergeEquitySummaries(statements)
}

// ParseEquitySummariesFiles is ParseEquitySummaries over statement files.
func (s *Service) ParseEquitySummariesFiles(paths ...string) (*FlexStatement, error) {
	contents, err := readAll(paths)
	if err != nil {
		return nil, err
	}
	return s.ParseEquitySummaries(contents...)
}

// FillPortfolio replays the given statement documents into ptf. A nil ptf
// starts a fresh portfolio covering the statements' period. Transactions
// already in the ledger are not applied again, so feeding the same statement
// twice leaves the portfolio unchanged.
func (s *Service) FillPortfolio(ptf *Portfolio, contents ...string) (*Portfolio, error) {
	flexStatement, err := s.ParseActivities(contents...)
	if err != nil {
		return nil, err
	}

	if ptf == nil {
		ptf = NewPortfolio(flexStatement.AccountID, flexStatement.FromDate, flexStatement.ToDate)
	} else {
		if ptf.AccountID != flexStatement.AccountID {
			return nil, fmt.Errorf("unexpected multiple accounts: %s, %s", ptf.AccountID, flexStatement.AccountID)
		}
		nextPeriodFrom := ptf.PeriodTo.Add(1)
		if nextPeriodFrom.Before(flexStatement.FromDate) {
			today := date.Today()
			isTodayPeriod := flexStatement.FromDate == today && flexStatement.ToDate == today
			tolerate := (flexStatement.Type == "" && isTodayPeriod) || flexStatement.Type == StatementTypeTradeConfirm
			if !tolerate {
				return nil, fmt.Errorf("missing period: %s - %s, accountId=%s",
					nextPeriodFrom, flexStatement.FromDate.Add(-1), ptf.AccountID)
			}
		}
		if flexStatement.ToDate.After(ptf.PeriodTo) {
			ptf.PeriodTo = flexStatement.ToDate
		}
	}

	knownIDs := make(map[string]bool, len(ptf.Transactions))
	for _, t := range ptf.Transactions {
		knownIDs[t.ID] = true
	}
	addIDs := func(trans []*Transaction) {
		for _, t := range trans {
			knownIDs[t.ID] = true
		}
	}

	newCashTrans, err := mapCashTransactions(knownIDs, flexStatement.CashTransactions)
	if err != nil {
		return nil, err
	}
	addIDs(newCashTrans)

	newTrades, err := mapTrades(knownIDs, flexStatement.Trades)
	if err != nil {
		return nil, err
	}
	addIDs(newTrades)

	newTradeConfirms, err := mapTradeConfirms(knownIDs, flexStatement.TradeConfirms)
	if err != nil {
		return nil, err
	}
	addIDs(newTradeConfirms)

	newCorpActions, err := mapCorporateActions(knownIDs, flexStatement.CorporateActions)
	if err != nil {
		return nil, err
	}
	addIDs(newCorpActions)

	var newTrans []*Transaction
	newTrans = append(newTrans, newCashTrans...)
	newTrans = append(newTrans, newTrades...)
	newTrans = append(newTrans, newTradeConfirms...)
	newTrans = append(newTrans, newCorpActions...)
	slices.SortFunc(newTrans, func(a, b *Transaction) int {
		return strings.Compare(a.ID, b.ID)
	})

	for _, tran := range newTrans {
		ptf.Transactions = append(ptf.Transactions, tran)
		if err := ptf.ApplyTransaction(tran); err != nil {
			return nil, err
		}
	}
	return ptf, nil
}

// FillPortfolioFiles is FillPortfolio over statement files.
func (s *Service) FillPortfolioFiles(ptf *Portfolio, paths ...string) (*Portfolio, error) {
	contents, err := readAll(paths)
	if err != nil {
		return nil, err
	}
	return s.FillPortfolio(ptf, contents...)
}

func (s *Service) parseAll(parse func(string) (*FlexStatement, error), contents []string) ([]*FlexStatement, error) {
	if len(contents) == 0 {
		return nil, fmt.Errorf("expected at least one statement")
	}
	statements := make([]*FlexStatement, 0, len(contents))
	for _, content := range contents {
		statement, err := parse(content)
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}
	slices.SortFunc(statements, func(a, b *FlexStatement) int {
		if c := compareDates(a.FromDate, b.FromDate); c != 0 {
			return c
		}
		return compareDates(a.ToDate, b.ToDate)
	})
	return statements, nil
}

func readAll(paths []string) ([]string, error) {
	contents := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading statement: %w", err)
		}
		contents = append(contents, string(data))
	}
	return contents, nil
}

func compareDates(a, b date.Date) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}

// mergeActivities folds sorted statements into one batch covering their
// union period. Statements must belong to one account and leave no day of
// the union uncovered; trade-confirmation statements are exempt from the
// coverage check since they report ahead of the activity period.
func mergeActivities(statements []*FlexStatement) (*FlexStatement, error) {
	result := &FlexStatement{
		AccountID: statements[0].AccountID,
		FromDate:  statements[0].FromDate,
		ToDate:    statements[0].ToDate,
	}

	cashTrans := make(map[string]CashTransaction)
	trades := make(map[string]Trade)
	tradeConfirms := make(map[string]TradeConfirm)
	corpActions := make(map[string]CorporateAction)

	for _, statement := range statements {
		if err := mergeCheck(result, statement); err != nil {
			return nil, err
		}
		for i := range statement.CashTransactions {
			raw := statement.CashTransactions[i]
			id := cashTransactionID(&raw)
			if _, ok := cashTrans[id]; !ok {
				cashTrans[id] = raw
			}
		}
		for i := range statement.Trades {
			raw := statement.Trades[i]
			id := tradeID(&raw)
			if _, ok := trades[id]; !ok {
				trades[id] = raw
			}
		}
		for i := range statement.TradeConfirms {
			raw := statement.TradeConfirms[i]
			id := tradeConfirmID(&raw)
			if _, ok := tradeConfirms[id]; !ok {
				tradeConfirms[id] = raw
			}
		}
		for i := range statement.CorporateActions {
			raw := statement.CorporateActions[i]
			id := corporateActionID(&raw)
			if _, ok := corpActions[id]; !ok {
				corpActions[id] = raw
			}
		}
	}

	result.CashTransactions = sortedValues(cashTrans)
	result.Trades = sortedValues(trades)
	result.TradeConfirms = sortedValues(tradeConfirms)
	result.CorporateActions = sortedValues(corpActions)
	return result, nil
}

// mergeEquitySummaries folds sorted statements into one batch holding one
// equity summary per report date, first occurrence winning.
func mergeEquitySummaries(statements []*FlexStatement) (*FlexStatement, error) {
	result := &FlexStatement{
		AccountID: statements[0].AccountID,
		FromDate:  statements[0].FromDate,
		ToDate:    statements[0].ToDate,
	}

	summaries := make(map[date.Date]EquitySummary)
	for _, statement := range statements {
		if err := mergeCheck(result, statement); err != nil {
			return nil, err
		}
		for _, es := range statement.EquitySummaries {
			if _, ok := summaries[es.ReportDate]; !ok {
				summaries[es.ReportDate] = es
			}
		}
	}

	days := make([]date.Date, 0, len(summaries))
	for day := range summaries {
		days = append(days, day)
	}
	slices.SortFunc(days, compareDates)
	for _, day := range days {
		result.EquitySummaries = append(result.EquitySummaries, summaries[day])
	}
	return result, nil
}

// mergeCheck verifies the next statement continues the merged period and
// extends result's period to cover it.
func mergeCheck(result, statement *FlexStatement) error {
	if statement.AccountID != result.AccountID {
		return fmt.Errorf("unexpected multiple accounts: %s, %s", result.AccountID, statement.AccountID)
	}
	nextPeriodFrom := result.ToDate.Add(1)
	if nextPeriodFrom.Before(statement.FromDate) && statement.Type != StatementTypeTradeConfirm {
		return fmt.Errorf("missing period: %s - %s, accountId=%s",
			nextPeriodFrom, statement.FromDate.Add(-1), result.AccountID)
	}
	if statement.ToDate.After(result.ToDate) {
		result.ToDate = statement.ToDate
	}
	return nil
}

func sortedValues[V any](m map[string]V) []V {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	values := make([]V, 0, len(m))
	for _, id := range ids {
		values = append(values, m[id])
	}
	return values
}
