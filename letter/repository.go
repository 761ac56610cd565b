package letter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLetterNotFound = errors.New("letter: not found")

const letterColumns = `id, client_id, round_id, bureau, template_id, body, status, created_at, sent_at`

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, l Letter) (Letter, error) {
	const query = `
		INSERT INTO letters (id, client_id, round_id, bureau, template_id, body, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + letterColumns

	row := tx.QueryRow(ctx, query, l.ID, l.ClientID, l.RoundID, l.Bureau, l.TemplateID, l.Body, l.Status)
	created, err := scanLetter(row)
	if err != nil {
		return Letter{}, fmt.Errorf("letter: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE id = $1`

	l, err := scanLetter(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Letter{}, ErrLetterNotFound
		}
		return Letter{}, fmt.Errorf("letter: get: %w", err)
	}
	return l, nil
}

func (r *PGRepository) ListByRound(ctx context.Context, roundID string) ([]Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE round_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("letter: list by round: %w", err)
	}
	defer rows.Close()

	out := make([]Letter, 0, 4)
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("letter: scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("letter: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) MarkSent(ctx context.Context, id string, at time.Time) (Letter, error) {
	query := `
		UPDATE letters SET status = 'sent', sent_at = $2
		WHERE id = $1 AND status = 'draft'
		RETURNING ` + letterColumns

	l, err := scanLetter(r.pool.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Letter{}, ErrLetterNotFound
		}
		return Letter{}, fmt.Errorf("letter: mark sent: %w", err)
	}
	return l, nil
}

func scanLetter(row pgx.Row) (Letter, error) {
	var l Letter
	return l, row.Scan(
		&l.ID,
		&l.ClientID,
		&l.RoundID,
		&l.Bureau,
		&l.TemplateID,
		&l.Body,
		&l.Status,
		&l.CreatedAt,
		&l.SentAt,
	)
}
