package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binhusmachado/creditrepair-pro/report"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ReportStore is the slice of the report repository the analyzer reads.
type ReportStore interface {
	GetReport(ctx context.Context, id string) (report.CreditReport, error)
	TradelinesByReport(ctx context.Context, reportID string) ([]report.TradelineAccount, error)
	InquiriesByReport(ctx context.Context, reportID string) ([]report.Inquiry, error)
	PreviousReport(ctx context.Context, clientID string, bureau report.Bureau, excludeReportID string, before time.Time) (report.CreditReport, error)
}

// Service runs detection over an uploaded report and persists the findings,
// superseding earlier unresolved findings for the same client and bureau.
type Service struct {
	pool        TxBeginner
	repo        Repository
	reports     ReportStore
	detector    *Detector
	idGenerator func() string
	now         func() time.Time
}

func NewService(pool TxBeginner, repo Repository, reports ReportStore) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		reports:     reports,
		detector:    NewDetector(),
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.detector = s.detector.WithClock(now)
	return s
}

// Analyze detects errors on one report. The whole result is committed
// atomically: supersession of prior findings and the new finding set either
// both land or neither does.
func (s *Service) Analyze(ctx context.Context, reportID string) ([]Finding, error) {
	rep, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	tradelines, err := s.reports.TradelinesByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	inquiries, err := s.reports.InquiriesByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	findings := s.detector.Analyze(tradelines)
	findings = append(findings, s.detector.AnalyzeInquiries(inquiries)...)

	history, err := s.historyFindings(ctx, rep, tradelines)
	if err != nil {
		return nil, err
	}
	findings = append(findings, history...)

	now := s.now().UTC()
	for i := range findings {
		findings[i].ID = s.idGenerator()
		findings[i].ClientID = rep.ClientID
		findings[i].ReportID = rep.ID
		findings[i].DetectedAt = now
		if findings[i].ReportDate.IsZero() {
			findings[i].ReportDate = rep.ReportDate
		}
		if findings[i].Severity == "" {
			info, err := Info(findings[i].Category)
			if err != nil {
				return nil, err
			}
			findings[i].Severity = info.Severity
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyzer: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.SupersedeUnresolved(ctx, tx, rep.ClientID, string(rep.Bureau), rep.ID); err != nil {
		return nil, err
	}

	stored := make([]Finding, 0, len(findings))
	for _, f := range findings {
		created, err := s.repo.InsertFinding(ctx, tx, f)
		if err != nil {
			return nil, err
		}
		stored = append(stored, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("analyzer: commit tx: %w", err)
	}

	log.WithFields(log.Fields{
		"client_id": rep.ClientID,
		"report_id": rep.ID,
		"bureau":    string(rep.Bureau),
		"findings":  len(stored),
	}).Info("report analyzed")

	return stored, nil
}

// historyFindings compares the report against the client's previous snapshot
// for the same bureau, surfacing re-aging and growing charge-off balances.
// The first report for a bureau has no history to compare.
func (s *Service) historyFindings(ctx context.Context, rep report.CreditReport, tradelines []report.TradelineAccount) ([]Finding, error) {
	prev, err := s.reports.PreviousReport(ctx, rep.ClientID, rep.Bureau, rep.ID, rep.ReportDate)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	prevTradelines, err := s.reports.TradelinesByReport(ctx, prev.ID)
	if err != nil {
		return nil, err
	}
	return s.detector.CompareReports(prevTradelines, tradelines), nil
}

// ListUnresolved exposes the live finding set for a client.
func (s *Service) ListUnresolved(ctx context.Context, clientID string) ([]Finding, error) {
	return s.repo.ListUnresolved(ctx, clientID)
}
