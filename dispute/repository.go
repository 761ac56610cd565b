package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/binhusmachado/creditrepair-pro/report"
)

var (
	ErrRoundNotFound = errors.New("dispute: round not found")
	// ErrOpenRoundExists signals a concurrent creator already opened a round
	// for this (client, bureau). The loser re-reads and defers its items.
	ErrOpenRoundExists = errors.New("dispute: open round already exists for bureau")
	ErrBadTransition   = errors.New("dispute: invalid status transition")
	// ErrStalePlan signals every planned finding was resolved between planning
	// and insert. The caller drops the round and re-plans on the next run.
	ErrStalePlan = errors.New("dispute: planned findings resolved since planning")
)

const roundColumns = `id, client_id, bureau, round_number, status, escalation_tier, created_at, sent_at, respond_by, closed_at`
const itemColumns = `id, round_id, client_id, bureau, finding_id, tradeline_id, category, severity, basis, rank, template_id, outcome, created_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists dispute rounds and items.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRound inserts a round and its full item set in the caller's
// transaction. The partial unique index on (client_id, bureau) over open
// statuses makes the one-open-round invariant hold under concurrent
// creators; the unique (client_id, bureau, round_number) key keeps numbers
// contiguous. Either every row lands or none do.
func (r *Repository) CreateRound(ctx context.Context, tx pgx.Tx, round Round) (Round, error) {
	const insertRound = `
		INSERT INTO dispute_rounds (id, client_id, bureau, round_number, status, escalation_tier)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
		RETURNING ` + roundColumns

	created, err := scanRound(tx.QueryRow(ctx, insertRound,
		round.ID, round.ClientID, round.Bureau, round.Number, round.Status, round.EscalationTier))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Round{}, ErrOpenRoundExists
		}
		return Round{}, fmt.Errorf("dispute: insert round: %w", err)
	}

	// The SELECT re-checks the finding is still live and share-locks it until
	// commit, so a plan built from a stale snapshot cannot re-dispute a
	// finding a concurrent outcome just resolved. Stale items are skipped and
	// the survivors re-ranked to stay dense.
	const insertItem = `
		INSERT INTO dispute_items (id, round_id, client_id, bureau, finding_id, tradeline_id,
			category, severity, basis, rank, template_id)
		SELECT COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2::uuid, $3::uuid, $4::text, f.id, $6::uuid,
			$7::text, $8::text, $9::text, $10::int, $11::text
		FROM findings f
		WHERE f.id = $5::uuid AND NOT f.resolved AND NOT f.superseded
		FOR SHARE OF f
		RETURNING ` + itemColumns

	items := make([]Item, 0, len(round.Items))
	for _, item := range round.Items {
		row := tx.QueryRow(ctx, insertItem,
			item.ID, created.ID, round.ClientID, item.Bureau, item.FindingID, item.TradelineID,
			item.Category, item.Severity, item.Basis, len(items)+1, item.TemplateID)
		stored, err := scanItem(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return Round{}, fmt.Errorf("dispute: insert item: %w", err)
		}
		items = append(items, stored)
	}
	if len(items) == 0 {
		return Round{}, ErrStalePlan
	}
	created.Items = items
	return created, nil
}

// OpenRounds returns the client's rounds still blocking their bureau, items
// included.
func (r *Repository) OpenRounds(ctx context.Context, clientID string) ([]Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM dispute_rounds
		WHERE client_id = $1 AND status IN ('drafted','sent','awaiting_response')
		ORDER BY bureau
	`
	return r.queryRoundsWithItems(ctx, r.pool, query, clientID)
}

// ListRounds returns all rounds for a client, optionally narrowed to one
// bureau, newest first.
func (r *Repository) ListRounds(ctx context.Context, clientID string, bureau report.Bureau) ([]Round, error) {
	query := `SELECT ` + roundColumns + ` FROM dispute_rounds WHERE client_id = $1`
	args := []any{clientID}
	if bureau != "" {
		query += ` AND bureau = $2`
		args = append(args, bureau)
	}
	query += ` ORDER BY bureau, round_number DESC`
	return r.queryRoundsWithItems(ctx, r.pool, query, args...)
}

// GetRound loads one round with its items, no lock.
func (r *Repository) GetRound(ctx context.Context, roundID string) (Round, error) {
	query := `SELECT ` + roundColumns + ` FROM dispute_rounds WHERE id = $1`
	round, err := scanRound(r.pool.QueryRow(ctx, query, roundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Round{}, ErrRoundNotFound
		}
		return Round{}, fmt.Errorf("dispute: get round: %w", err)
	}
	round.Items, err = r.roundItems(ctx, r.pool, round.ID)
	if err != nil {
		return Round{}, err
	}
	return round, nil
}

// LastRoundNumbers reports the highest round number per bureau for the
// client; bureaus without rounds are absent.
func (r *Repository) LastRoundNumbers(ctx context.Context, clientID string) (map[report.Bureau]int, error) {
	const query = `
		SELECT bureau, MAX(round_number)
		FROM dispute_rounds
		WHERE client_id = $1
		GROUP BY bureau
	`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("dispute: last round numbers: %w", err)
	}
	defer rows.Close()

	out := map[report.Bureau]int{}
	for rows.Next() {
		var (
			bureau report.Bureau
			number int
		)
		if err := rows.Scan(&bureau, &number); err != nil {
			return nil, fmt.Errorf("dispute: scan round number: %w", err)
		}
		out[bureau] = number
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate round numbers: %w", err)
	}
	return out, nil
}

// GetRoundForUpdate locks the round row for a status transition and loads
// its items.
func (r *Repository) GetRoundForUpdate(ctx context.Context, tx pgx.Tx, roundID string) (Round, error) {
	query := `SELECT ` + roundColumns + ` FROM dispute_rounds WHERE id = $1 FOR UPDATE`

	round, err := scanRound(tx.QueryRow(ctx, query, roundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Round{}, ErrRoundNotFound
		}
		return Round{}, fmt.Errorf("dispute: get round for update: %w", err)
	}

	items, err := r.roundItems(ctx, tx, round.ID)
	if err != nil {
		return Round{}, err
	}
	round.Items = items
	return round, nil
}

// UpdateRoundStatus applies a validated transition inside the caller's
// transaction. Timestamps are set according to the target status.
func (r *Repository) UpdateRoundStatus(ctx context.Context, tx pgx.Tx, round Round, next Status, now time.Time, respondBy *time.Time) (Round, error) {
	if !ValidTransition(round.Status, next) {
		return Round{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, round.Status, next)
	}

	var (
		sentAt   = round.SentAt
		closedAt = round.ClosedAt
	)
	switch next {
	case StatusSent:
		t := now
		sentAt = &t
	case StatusResolved, StatusEscalated:
		t := now
		closedAt = &t
	}
	if respondBy == nil {
		respondBy = round.RespondBy
	}

	const query = `
		UPDATE dispute_rounds
		SET status = $2, sent_at = $3, respond_by = $4, closed_at = $5
		WHERE id = $1
		RETURNING ` + roundColumns

	updated, err := scanRound(tx.QueryRow(ctx, query, round.ID, next, sentAt, respondBy, closedAt))
	if err != nil {
		return Round{}, fmt.Errorf("dispute: update round status: %w", err)
	}
	updated.Items = round.Items
	return updated, nil
}

// SetItemOutcome records the bureau's answer for one item.
func (r *Repository) SetItemOutcome(ctx context.Context, tx pgx.Tx, itemID string, outcome Outcome) error {
	tag, err := tx.Exec(ctx, `UPDATE dispute_items SET outcome = $2 WHERE id = $1`, itemID, outcome)
	if err != nil {
		return fmt.Errorf("dispute: set item outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispute: item %s not found", itemID)
	}
	return nil
}

// ResolveFindings marks the given findings resolved so future strategy runs
// exclude them.
func (r *Repository) ResolveFindings(ctx context.Context, tx pgx.Tx, findingIDs []string, at time.Time) error {
	if len(findingIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE findings
		SET resolved = TRUE, resolved_at = $2
		WHERE id = ANY($1) AND resolved = FALSE
	`, findingIDs, at)
	if err != nil {
		return fmt.Errorf("dispute: resolve findings: %w", err)
	}
	return nil
}

// ExpiredRounds returns rounds whose response window has elapsed, with
// items, for the escalation sweep.
func (r *Repository) ExpiredRounds(ctx context.Context, now time.Time) ([]Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM dispute_rounds
		WHERE status IN ('sent','awaiting_response') AND respond_by IS NOT NULL AND respond_by < $1
		ORDER BY respond_by
	`
	return r.queryRoundsWithItems(ctx, r.pool, query, now)
}

// AppendEvent writes an immutable audit event in the same transaction as
// the state change it records.
func (r *Repository) AppendEvent(ctx context.Context, tx pgx.Tx, clientID string, roundID *string, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispute: marshal event payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO dispute_events (client_id, round_id, type, payload)
		VALUES ($1, $2, $3, $4::jsonb)
	`, clientID, roundID, eventType, string(body))
	if err != nil {
		return fmt.Errorf("dispute: insert event: %w", err)
	}
	return nil
}

// EnqueueOutbox stages a message for the delivery worker in the same
// transaction as the state change that produced it.
func (r *Repository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispute: marshal outbox payload: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, string(body))
	if err != nil {
		return fmt.Errorf("dispute: enqueue outbox: %w", err)
	}
	return nil
}

func (r *Repository) queryRoundsWithItems(ctx context.Context, q querier, query string, args ...any) ([]Round, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: query rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]Round, 0, 4)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate rounds: %w", err)
	}
	rows.Close()

	for i := range rounds {
		items, err := r.roundItems(ctx, q, rounds[i].ID)
		if err != nil {
			return nil, err
		}
		rounds[i].Items = items
	}
	return rounds, nil
}

func (r *Repository) roundItems(ctx context.Context, q querier, roundID string) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM dispute_items WHERE round_id = $1 ORDER BY rank`
	rows, err := q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("dispute: query items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0, 8)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate items: %w", err)
	}
	return items, nil
}

func scanRound(row pgx.Row) (Round, error) {
	var r Round
	return r, row.Scan(
		&r.ID,
		&r.ClientID,
		&r.Bureau,
		&r.Number,
		&r.Status,
		&r.EscalationTier,
		&r.CreatedAt,
		&r.SentAt,
		&r.RespondBy,
		&r.ClosedAt,
	)
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	return item, row.Scan(
		&item.ID,
		&item.RoundID,
		&item.ClientID,
		&item.Bureau,
		&item.FindingID,
		&item.TradelineID,
		&item.Category,
		&item.Severity,
		&item.Basis,
		&item.Rank,
		&item.TemplateID,
		&item.Outcome,
		&item.CreatedAt,
	)
}
