package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrFindingNotFound = errors.New("analyzer: finding not found")

const findingColumns = `id, client_id, report_id, tradeline_id, related_tradeline_id, bureau, category,
	severity, details, detected_at, report_date, resolved, resolved_at, superseded`

// Repository persists findings.
type Repository interface {
	InsertFinding(ctx context.Context, tx pgx.Tx, f Finding) (Finding, error)
	SupersedeUnresolved(ctx context.Context, tx pgx.Tx, clientID string, bureau string, exceptReportID string) error
	ListUnresolved(ctx context.Context, clientID string) ([]Finding, error)
	ListByReport(ctx context.Context, reportID string) ([]Finding, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) InsertFinding(ctx context.Context, tx pgx.Tx, f Finding) (Finding, error) {
	detailsJSON, err := json.Marshal(f.Details)
	if err != nil {
		return Finding{}, fmt.Errorf("analyzer: marshal details: %w", err)
	}

	const query = `
		INSERT INTO findings (id, client_id, report_id, tradeline_id, related_tradeline_id, bureau,
			category, severity, details, detected_at, report_date)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11)
		RETURNING ` + findingColumns

	row := tx.QueryRow(ctx, query,
		f.ID, f.ClientID, f.ReportID, f.TradelineID, f.RelatedTradelineID, f.Bureau,
		f.Category, f.Severity, string(detailsJSON), f.DetectedAt, f.ReportDate,
	)

	created, err := scanFinding(row)
	if err != nil {
		return Finding{}, fmt.Errorf("analyzer: insert finding: %w", err)
	}
	return created, nil
}

// SupersedeUnresolved retires older unresolved findings for the same client
// and bureau once a newer report has been analyzed. Findings in an active
// dispute round keep their dispute linkage; supersession never rewrites
// historical rounds.
func (r *PGRepository) SupersedeUnresolved(ctx context.Context, tx pgx.Tx, clientID string, bureau string, exceptReportID string) error {
	const query = `
		UPDATE findings
		SET superseded = TRUE
		WHERE client_id = $1
		  AND bureau = $2
		  AND report_id <> $3
		  AND resolved = FALSE
		  AND superseded = FALSE
	`
	if _, err := tx.Exec(ctx, query, clientID, bureau, exceptReportID); err != nil {
		return fmt.Errorf("analyzer: supersede findings: %w", err)
	}
	return nil
}

// ListUnresolved returns the live findings for a client: not resolved and
// not superseded by a newer report. This is the strategy builder's input.
func (r *PGRepository) ListUnresolved(ctx context.Context, clientID string) ([]Finding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM findings
		WHERE client_id = $1 AND resolved = FALSE AND superseded = FALSE
		ORDER BY detected_at DESC
	`
	return r.queryFindings(ctx, query, clientID)
}

func (r *PGRepository) ListByReport(ctx context.Context, reportID string) ([]Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE report_id = $1 ORDER BY severity, category`
	return r.queryFindings(ctx, query, reportID)
}

func (r *PGRepository) queryFindings(ctx context.Context, query string, args ...any) ([]Finding, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("analyzer: query findings: %w", err)
	}
	defer rows.Close()

	out := make([]Finding, 0, 16)
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("analyzer: scan finding: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analyzer: iterate findings: %w", err)
	}
	return out, nil
}

func scanFinding(row pgx.Row) (Finding, error) {
	var (
		f           Finding
		detailsJSON []byte
	)
	err := row.Scan(
		&f.ID,
		&f.ClientID,
		&f.ReportID,
		&f.TradelineID,
		&f.RelatedTradelineID,
		&f.Bureau,
		&f.Category,
		&f.Severity,
		&detailsJSON,
		&f.DetectedAt,
		&f.ReportDate,
		&f.Resolved,
		&f.ResolvedAt,
		&f.Superseded,
	)
	if err != nil {
		return Finding{}, err
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &f.Details); err != nil {
			return Finding{}, fmt.Errorf("analyzer: unmarshal details: %w", err)
		}
	}
	return f, nil
}
