package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicateIdempotencyKey signals a webhook replay; the caller treats
	// it as already-processed.
	ErrDuplicateIdempotencyKey = errors.New("billing: duplicate idempotency key")
	ErrPlanNotFound            = errors.New("billing: plan not found")
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertIdempotencyKey reserves the processor event id inside the active
// transaction. A unique violation means the event was already applied.
func (r *PGRepository) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	if key == "" {
		return fmt.Errorf("billing: empty idempotency key")
	}

	_, err := tx.Exec(ctx, `INSERT INTO idempotency_keys (key) VALUES ($1)`, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("billing: insert idempotency key: %w", err)
	}
	return nil
}

// SeedPlans inserts the default tiers, skipping slugs that already exist.
func (r *PGRepository) SeedPlans(ctx context.Context, plans []Plan) error {
	const query = `
		INSERT INTO subscription_plans (id, name, slug, description, price_monthly,
			max_disputes, max_reports, includes_letters, includes_monitoring, priority_support)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO NOTHING
	`
	for _, p := range plans {
		_, err := r.pool.Exec(ctx, query, p.Name, p.Slug, p.Description, p.PriceMonthly,
			p.MaxDisputes, p.MaxReports, p.IncludesLetters, p.IncludesMonitoring, p.PrioritySupport)
		if err != nil {
			return fmt.Errorf("billing: seed plan %s: %w", p.Slug, err)
		}
	}
	return nil
}

func (r *PGRepository) GetPlanBySlug(ctx context.Context, slug string) (Plan, error) {
	const query = `
		SELECT id, name, slug, description, price_monthly, max_disputes, max_reports,
			includes_letters, includes_monitoring, priority_support, stripe_price_id, created_at
		FROM subscription_plans WHERE slug = $1
	`
	var p Plan
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.PriceMonthly, &p.MaxDisputes,
		&p.MaxReports, &p.IncludesLetters, &p.IncludesMonitoring, &p.PrioritySupport,
		&p.StripePriceID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, fmt.Errorf("billing: get plan: %w", err)
	}
	return p, nil
}

// UpsertSubscription applies the webhook's view of the subscription. The
// user id is the conflict key so repeated lifecycle events converge on one
// row.
func (r *PGRepository) UpsertSubscription(ctx context.Context, tx pgx.Tx, sub Subscription) (Subscription, error) {
	const query = `
		INSERT INTO subscriptions (id, user_id, plan_slug, status, stripe_subscription_id, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_slug = EXCLUDED.plan_slug,
			status = EXCLUDED.status,
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
			updated_at = now()
		RETURNING id, user_id, plan_slug, status, stripe_subscription_id, current_period_end, created_at, updated_at
	`
	row := tx.QueryRow(ctx, query, sub.ID, sub.UserID, sub.PlanSlug, sub.Status, sub.StripeSubscriptionID, sub.CurrentPeriodEnd)
	var out Subscription
	err := row.Scan(&out.ID, &out.UserID, &out.PlanSlug, &out.Status,
		&out.StripeSubscriptionID, &out.CurrentPeriodEnd, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Subscription{}, fmt.Errorf("billing: upsert subscription: %w", err)
	}
	return out, nil
}

func (r *PGRepository) GetSubscriptionByUser(ctx context.Context, userID string) (Subscription, error) {
	const query = `
		SELECT id, user_id, plan_slug, status, stripe_subscription_id, current_period_end, created_at, updated_at
		FROM subscriptions WHERE user_id = $1
	`
	var sub Subscription
	err := r.pool.QueryRow(ctx, query, userID).Scan(&sub.ID, &sub.UserID, &sub.PlanSlug,
		&sub.Status, &sub.StripeSubscriptionID, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrPlanNotFound
		}
		return Subscription{}, fmt.Errorf("billing: get subscription: %w", err)
	}
	return sub, nil
}

// InsertPayment records a charge inside the webhook transaction.
func (r *PGRepository) InsertPayment(ctx context.Context, tx pgx.Tx, p Payment) error {
	const query = `
		INSERT INTO payments (id, user_id, subscription_id, amount, currency, status, stripe_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query, p.ID, p.UserID, p.SubscriptionID, p.Amount, p.Currency, p.Status, p.StripeEventID)
	if err != nil {
		return fmt.Errorf("billing: insert payment: %w", err)
	}
	return nil
}

// EnqueueOutbox stages a billing notification for the relay.
func (r *PGRepository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("billing: marshal outbox payload: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (id, topic, payload) VALUES (gen_random_uuid(), $1, $2::jsonb)`, topic, body)
	if err != nil {
		return fmt.Errorf("billing: enqueue outbox: %w", err)
	}
	return nil
}
