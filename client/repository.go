package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("client: not found")
	ErrDuplicateEmail = errors.New("client: email already registered")
)

const clientColumns = `id, owner_user_id, full_name, email, phone, address, city, state, zip_code, ssn_last_four, date_of_birth, status, created_at, updated_at`

// Repository provides data access for client files.
type Repository interface {
	Create(ctx context.Context, c Client) (Client, error)
	GetByID(ctx context.Context, id string) (Client, error)
	List(ctx context.Context, filters Filters) ([]Client, int, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, c Client) (Client, error) {
	const query = `
		INSERT INTO clients (id, owner_user_id, full_name, email, phone, address, city, state, zip_code, ssn_last_four, date_of_birth, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + clientColumns

	row := r.pool.QueryRow(ctx, query,
		c.ID,
		c.OwnerUserID,
		c.FullName,
		c.Email,
		c.Phone,
		c.Address,
		c.City,
		c.State,
		c.ZipCode,
		c.SSNLastFour,
		c.DateOfBirth,
		c.Status,
	)

	created, err := scanClient(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Client{}, ErrDuplicateEmail
		}
		return Client{}, fmt.Errorf("client: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	c, err := scanClient(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("client: get by id: %w", err)
	}
	return c, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Client, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	base := `SELECT ` + clientColumns + ` FROM clients`
	where := []string{"1=1"}
	args := []any{}

	if filters.OwnerUserID != "" {
		where = append(where, fmt.Sprintf("owner_user_id=$%d", len(args)+1))
		args = append(args, filters.OwnerUserID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d", len(args)+1))
		args = append(args, filters.Status)
	}
	if filters.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filters.Search+"%")
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")
	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`%s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("client: query list: %w", err)
	}
	defer rows.Close()

	list := []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("client: scan: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("client: iterate: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM clients%s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("client: count list: %w", err)
	}

	return list, total, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	return c, row.Scan(
		&c.ID,
		&c.OwnerUserID,
		&c.FullName,
		&c.Email,
		&c.Phone,
		&c.Address,
		&c.City,
		&c.State,
		&c.ZipCode,
		&c.SSNLastFour,
		&c.DateOfBirth,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}
