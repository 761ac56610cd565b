package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/binhusmachado/creditrepair-pro/report"
)

type fakeReportStore struct {
	current    report.CreditReport
	previous   *report.CreditReport
	tradelines map[string][]report.TradelineAccount
	inquiries  []report.Inquiry

	gotExcludeID string
}

func (f *fakeReportStore) GetReport(_ context.Context, id string) (report.CreditReport, error) {
	if id != f.current.ID {
		return report.CreditReport{}, report.ErrNotFound
	}
	return f.current, nil
}

func (f *fakeReportStore) TradelinesByReport(_ context.Context, reportID string) ([]report.TradelineAccount, error) {
	return f.tradelines[reportID], nil
}

func (f *fakeReportStore) InquiriesByReport(context.Context, string) ([]report.Inquiry, error) {
	return f.inquiries, nil
}

func (f *fakeReportStore) PreviousReport(_ context.Context, _ string, _ report.Bureau, excludeReportID string, _ time.Time) (report.CreditReport, error) {
	f.gotExcludeID = excludeReportID
	if f.previous == nil {
		return report.CreditReport{}, report.ErrNotFound
	}
	return *f.previous, nil
}

type fakeFindingRepo struct {
	inserted   []Finding
	superseded bool
}

func (f *fakeFindingRepo) InsertFinding(_ context.Context, _ pgx.Tx, fd Finding) (Finding, error) {
	f.inserted = append(f.inserted, fd)
	return fd, nil
}

func (f *fakeFindingRepo) SupersedeUnresolved(context.Context, pgx.Tx, string, string, string) error {
	f.superseded = true
	return nil
}

func (f *fakeFindingRepo) ListUnresolved(context.Context, string) ([]Finding, error) {
	return nil, nil
}

func (f *fakeFindingRepo) ListByReport(context.Context, string) ([]Finding, error) {
	return nil, nil
}

type fakePool struct {
	txs []*fakeTx
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

func chargedOffSnapshot(id, reportID string, balance int64, lastActivity *time.Time) report.TradelineAccount {
	return report.TradelineAccount{
		ID:               id,
		ReportID:         reportID,
		ClientID:         "client-1",
		Bureau:           report.BureauEquifax,
		CreditorName:     "Harbor Finance",
		AccountNumber:    "9001",
		AccountType:      "installment",
		Status:           report.AccountChargeOff,
		IsChargeOff:      true,
		Balance:          decimal.NewFromInt(balance),
		DateLastActivity: lastActivity,
		DateReported:     time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}

// A second report for the same bureau gets compared against the previous
// snapshot: a charge-off balance that grew and a last-activity date that
// slid forward both become findings.
func TestAnalyze_FlagsHistoryAgainstPreviousReport(t *testing.T) {
	prevRep := report.CreditReport{
		ID: "rep-1", ClientID: "client-1", Bureau: report.BureauEquifax,
		ReportDate: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
	currRep := report.CreditReport{
		ID: "rep-2", ClientID: "client-1", Bureau: report.BureauEquifax,
		ReportDate: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	store := &fakeReportStore{
		current:  currRep,
		previous: &prevRep,
		tradelines: map[string][]report.TradelineAccount{
			"rep-1": {chargedOffSnapshot("tl-old", "rep-1", 1500, datePtr(2023, time.January, 10))},
			"rep-2": {chargedOffSnapshot("tl-new", "rep-2", 2000, datePtr(2023, time.March, 10))},
		},
	}
	repo := &fakeFindingRepo{}
	pool := &fakePool{}

	svc := NewService(pool, repo, store).
		WithClock(func() time.Time { return testNow }).
		WithIDGenerator(func() string { return "finding-x" })

	findings, err := svc.Analyze(context.Background(), "rep-2")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	cats := categories(findings)
	if cats[CatChargeOffBalanceGrowth] != 1 {
		t.Fatalf("expected charge_off_balance_growth finding, got %v", cats)
	}
	if cats[CatReAging] != 1 {
		t.Fatalf("expected re_aging finding, got %v", cats)
	}
	if store.gotExcludeID != "rep-2" {
		t.Errorf("previous-report lookup must exclude the analyzed report, got %q", store.gotExcludeID)
	}
	if !repo.superseded {
		t.Error("expected prior findings to be superseded")
	}
	if len(pool.txs) != 1 || !pool.txs[0].committed {
		t.Error("expected findings committed in one transaction")
	}
	for _, f := range findings {
		if f.ClientID != "client-1" || f.ReportID != "rep-2" {
			t.Errorf("finding not stamped with report identity: %+v", f)
		}
	}
}

// The first report for a bureau has nothing to compare against; analysis
// proceeds without history findings.
func TestAnalyze_FirstReportSkipsHistory(t *testing.T) {
	currRep := report.CreditReport{
		ID: "rep-1", ClientID: "client-1", Bureau: report.BureauEquifax,
		ReportDate: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
	store := &fakeReportStore{
		current: currRep,
		tradelines: map[string][]report.TradelineAccount{
			"rep-1": {chargedOffSnapshot("tl-1", "rep-1", 1500, datePtr(2023, time.January, 10))},
		},
	}

	svc := NewService(&fakePool{}, &fakeFindingRepo{}, store).
		WithClock(func() time.Time { return testNow })

	findings, err := svc.Analyze(context.Background(), "rep-1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	cats := categories(findings)
	if cats[CatChargeOffBalanceGrowth] != 0 || cats[CatReAging] != 0 {
		t.Fatalf("unexpected history findings on first report: %v", cats)
	}
}
