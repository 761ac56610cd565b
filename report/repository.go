package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("report: not found")

const tradelineColumns = `id, report_id, client_id, bureau, creditor_name, account_number, account_type, status,
	balance, credit_limit, past_due, payment_history, late_30_count, late_60_count, late_90_count,
	date_opened, date_closed, date_last_activity, date_reported, is_collection, is_charge_off,
	is_medical, is_authorized_user, created_at`

// Repository persists credit reports and their tradeline snapshots.
type Repository interface {
	InsertReport(ctx context.Context, tx pgx.Tx, rep CreditReport) (CreditReport, error)
	InsertTradeline(ctx context.Context, tx pgx.Tx, tl TradelineAccount) (TradelineAccount, error)
	GetReport(ctx context.Context, id string) (CreditReport, error)
	ListReports(ctx context.Context, clientID string) ([]CreditReport, error)
	PreviousReport(ctx context.Context, clientID string, bureau Bureau, excludeReportID string, before time.Time) (CreditReport, error)
	TradelinesByReport(ctx context.Context, reportID string) ([]TradelineAccount, error)
	LatestTradelines(ctx context.Context, clientID string) ([]TradelineAccount, error)
	GetTradeline(ctx context.Context, id string) (TradelineAccount, error)
	InsertInquiry(ctx context.Context, tx pgx.Tx, inq Inquiry) (Inquiry, error)
	InquiriesByReport(ctx context.Context, reportID string) ([]Inquiry, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) InsertReport(ctx context.Context, tx pgx.Tx, rep CreditReport) (CreditReport, error) {
	const query = `
		INSERT INTO credit_reports (id, client_id, bureau, source, report_date)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5)
		RETURNING id, client_id, bureau, source, report_date, uploaded_at
	`
	row := tx.QueryRow(ctx, query, rep.ID, rep.ClientID, rep.Bureau, rep.Source, rep.ReportDate)
	if err := row.Scan(&rep.ID, &rep.ClientID, &rep.Bureau, &rep.Source, &rep.ReportDate, &rep.UploadedAt); err != nil {
		return CreditReport{}, fmt.Errorf("report: insert report: %w", err)
	}
	return rep, nil
}

func (r *PGRepository) InsertTradeline(ctx context.Context, tx pgx.Tx, tl TradelineAccount) (TradelineAccount, error) {
	const query = `
		INSERT INTO tradeline_accounts (id, report_id, client_id, bureau, creditor_name, account_number,
			account_type, status, balance, credit_limit, past_due, payment_history,
			late_30_count, late_60_count, late_90_count, date_opened, date_closed,
			date_last_activity, date_reported, is_collection, is_charge_off, is_medical, is_authorized_user)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING ` + tradelineColumns

	row := tx.QueryRow(ctx, query,
		tl.ID, tl.ReportID, tl.ClientID, tl.Bureau, tl.CreditorName, tl.AccountNumber,
		tl.AccountType, tl.Status, tl.Balance, tl.CreditLimit, tl.PastDue, tl.PaymentHistory,
		tl.Late30Count, tl.Late60Count, tl.Late90Count, tl.DateOpened, tl.DateClosed,
		tl.DateLastActivity, tl.DateReported, tl.IsCollection, tl.IsChargeOff, tl.IsMedical, tl.IsAuthorizedUser,
	)

	created, err := scanTradeline(row)
	if err != nil {
		return TradelineAccount{}, fmt.Errorf("report: insert tradeline: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetReport(ctx context.Context, id string) (CreditReport, error) {
	const query = `SELECT id, client_id, bureau, source, report_date, uploaded_at FROM credit_reports WHERE id = $1`

	var rep CreditReport
	err := r.pool.QueryRow(ctx, query, id).Scan(&rep.ID, &rep.ClientID, &rep.Bureau, &rep.Source, &rep.ReportDate, &rep.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditReport{}, ErrNotFound
		}
		return CreditReport{}, fmt.Errorf("report: get report: %w", err)
	}
	return rep, nil
}

// PreviousReport returns the latest report for the same client and bureau
// dated at or before the given report date, skipping the report under
// analysis. ErrNotFound means the bureau has no earlier snapshot.
func (r *PGRepository) PreviousReport(ctx context.Context, clientID string, bureau Bureau, excludeReportID string, before time.Time) (CreditReport, error) {
	const query = `
		SELECT id, client_id, bureau, source, report_date, uploaded_at
		FROM credit_reports
		WHERE client_id = $1 AND bureau = $2 AND id <> $3 AND report_date <= $4
		ORDER BY report_date DESC, uploaded_at DESC
		LIMIT 1
	`
	var rep CreditReport
	err := r.pool.QueryRow(ctx, query, clientID, bureau, excludeReportID, before).
		Scan(&rep.ID, &rep.ClientID, &rep.Bureau, &rep.Source, &rep.ReportDate, &rep.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditReport{}, ErrNotFound
		}
		return CreditReport{}, fmt.Errorf("report: previous report: %w", err)
	}
	return rep, nil
}

func (r *PGRepository) ListReports(ctx context.Context, clientID string) ([]CreditReport, error) {
	const query = `
		SELECT id, client_id, bureau, source, report_date, uploaded_at
		FROM credit_reports
		WHERE client_id = $1
		ORDER BY report_date DESC, uploaded_at DESC
	`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("report: list reports: %w", err)
	}
	defer rows.Close()

	out := make([]CreditReport, 0, 8)
	for rows.Next() {
		var rep CreditReport
		if err := rows.Scan(&rep.ID, &rep.ClientID, &rep.Bureau, &rep.Source, &rep.ReportDate, &rep.UploadedAt); err != nil {
			return nil, fmt.Errorf("report: scan report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate reports: %w", err)
	}
	return out, nil
}

func (r *PGRepository) TradelinesByReport(ctx context.Context, reportID string) ([]TradelineAccount, error) {
	query := `SELECT ` + tradelineColumns + ` FROM tradeline_accounts WHERE report_id = $1 ORDER BY creditor_name ASC`
	return r.queryTradelines(ctx, query, reportID)
}

// LatestTradelines returns the tradeline snapshots belonging to the most
// recent report per bureau for the client. This is the read-only input the
// strategy run operates over.
func (r *PGRepository) LatestTradelines(ctx context.Context, clientID string) ([]TradelineAccount, error) {
	query := `
		SELECT ` + tradelineColumns + `
		FROM tradeline_accounts t
		WHERE t.client_id = $1
		  AND t.report_id IN (
			SELECT DISTINCT ON (bureau) id
			FROM credit_reports
			WHERE client_id = $1
			ORDER BY bureau, report_date DESC, uploaded_at DESC
		  )
		ORDER BY t.bureau, t.creditor_name
	`
	return r.queryTradelines(ctx, query, clientID)
}

func (r *PGRepository) GetTradeline(ctx context.Context, id string) (TradelineAccount, error) {
	query := `SELECT ` + tradelineColumns + ` FROM tradeline_accounts WHERE id = $1`

	tl, err := scanTradeline(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TradelineAccount{}, ErrNotFound
		}
		return TradelineAccount{}, fmt.Errorf("report: get tradeline: %w", err)
	}
	return tl, nil
}

func (r *PGRepository) queryTradelines(ctx context.Context, query string, args ...any) ([]TradelineAccount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: query tradelines: %w", err)
	}
	defer rows.Close()

	out := make([]TradelineAccount, 0, 16)
	for rows.Next() {
		tl, err := scanTradeline(rows)
		if err != nil {
			return nil, fmt.Errorf("report: scan tradeline: %w", err)
		}
		out = append(out, tl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate tradelines: %w", err)
	}
	return out, nil
}

func (r *PGRepository) InsertInquiry(ctx context.Context, tx pgx.Tx, inq Inquiry) (Inquiry, error) {
	const query = `
		INSERT INTO inquiries (id, report_id, client_id, bureau, subscriber_name, inquiry_date, purpose)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING id, report_id, client_id, bureau, subscriber_name, inquiry_date, purpose, created_at
	`
	row := tx.QueryRow(ctx, query, inq.ID, inq.ReportID, inq.ClientID, inq.Bureau, inq.SubscriberName, inq.InquiryDate, inq.Purpose)
	if err := row.Scan(&inq.ID, &inq.ReportID, &inq.ClientID, &inq.Bureau, &inq.SubscriberName, &inq.InquiryDate, &inq.Purpose, &inq.CreatedAt); err != nil {
		return Inquiry{}, fmt.Errorf("report: insert inquiry: %w", err)
	}
	return inq, nil
}

func (r *PGRepository) InquiriesByReport(ctx context.Context, reportID string) ([]Inquiry, error) {
	const query = `
		SELECT id, report_id, client_id, bureau, subscriber_name, inquiry_date, purpose, created_at
		FROM inquiries
		WHERE report_id = $1
		ORDER BY inquiry_date DESC
	`
	rows, err := r.pool.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("report: query inquiries: %w", err)
	}
	defer rows.Close()

	out := make([]Inquiry, 0, 8)
	for rows.Next() {
		var inq Inquiry
		if err := rows.Scan(&inq.ID, &inq.ReportID, &inq.ClientID, &inq.Bureau, &inq.SubscriberName, &inq.InquiryDate, &inq.Purpose, &inq.CreatedAt); err != nil {
			return nil, fmt.Errorf("report: scan inquiry: %w", err)
		}
		out = append(out, inq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate inquiries: %w", err)
	}
	return out, nil
}

func scanTradeline(row pgx.Row) (TradelineAccount, error) {
	var tl TradelineAccount
	return tl, row.Scan(
		&tl.ID,
		&tl.ReportID,
		&tl.ClientID,
		&tl.Bureau,
		&tl.CreditorName,
		&tl.AccountNumber,
		&tl.AccountType,
		&tl.Status,
		&tl.Balance,
		&tl.CreditLimit,
		&tl.PastDue,
		&tl.PaymentHistory,
		&tl.Late30Count,
		&tl.Late60Count,
		&tl.Late90Count,
		&tl.DateOpened,
		&tl.DateClosed,
		&tl.DateLastActivity,
		&tl.DateReported,
		&tl.IsCollection,
		&tl.IsChargeOff,
		&tl.IsMedical,
		&tl.IsAuthorizedUser,
		&tl.CreatedAt,
	)
}
