package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service handles ingestion of normalized report payloads. Extraction from
// PDFs is the upstream collaborator's job; by the time data reaches this
// service it is already structured.
type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

// IngestParams is one normalized report upload: the report header plus its
// tradeline snapshots.
type IngestParams struct {
	ClientID   string
	Bureau     Bureau
	Source     string
	ReportDate time.Time
	Tradelines []TradelineAccount
	Inquiries  []Inquiry
}

// IngestResult bundles the stored report and its snapshots.
type IngestResult struct {
	Report     CreditReport
	Tradelines []TradelineAccount
	Inquiries  []Inquiry
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
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
	return s
}

// Ingest stores the report and all of its tradelines atomically. A report
// with zero tradelines is legal (thin files exist).
func (s *Service) Ingest(ctx context.Context, params IngestParams) (IngestResult, error) {
	if params.ClientID == "" {
		return IngestResult{}, fmt.Errorf("report: missing client id")
	}
	if !ValidBureau(params.Bureau) {
		return IngestResult{}, fmt.Errorf("report: invalid bureau %q", params.Bureau)
	}
	if params.ReportDate.IsZero() {
		params.ReportDate = s.now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return IngestResult{}, fmt.Errorf("report: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rep, err := s.repo.InsertReport(ctx, tx, CreditReport{
		ID:         s.idGenerator(),
		ClientID:   params.ClientID,
		Bureau:     params.Bureau,
		Source:     params.Source,
		ReportDate: params.ReportDate,
	})
	if err != nil {
		return IngestResult{}, err
	}

	stored := make([]TradelineAccount, 0, len(params.Tradelines))
	for _, tl := range params.Tradelines {
		tl.ID = s.idGenerator()
		tl.ReportID = rep.ID
		tl.ClientID = params.ClientID
		tl.Bureau = params.Bureau
		if tl.DateReported.IsZero() {
			tl.DateReported = params.ReportDate
		}
		created, err := s.repo.InsertTradeline(ctx, tx, tl)
		if err != nil {
			return IngestResult{}, err
		}
		stored = append(stored, created)
	}

	inquiries := make([]Inquiry, 0, len(params.Inquiries))
	for _, inq := range params.Inquiries {
		inq.ID = s.idGenerator()
		inq.ReportID = rep.ID
		inq.ClientID = params.ClientID
		inq.Bureau = params.Bureau
		created, err := s.repo.InsertInquiry(ctx, tx, inq)
		if err != nil {
			return IngestResult{}, err
		}
		inquiries = append(inquiries, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return IngestResult{}, fmt.Errorf("report: commit tx: %w", err)
	}

	return IngestResult{Report: rep, Tradelines: stored, Inquiries: inquiries}, nil
}

func (s *Service) ListReports(ctx context.Context, clientID string) ([]CreditReport, error) {
	return s.repo.ListReports(ctx, clientID)
}

func (s *Service) TradelinesByReport(ctx context.Context, reportID string) ([]TradelineAccount, error) {
	return s.repo.TradelinesByReport(ctx, reportID)
}

func (s *Service) LatestTradelines(ctx context.Context, clientID string) ([]TradelineAccount, error) {
	return s.repo.LatestTradelines(ctx, clientID)
}
