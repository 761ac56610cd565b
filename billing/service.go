package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the data access required by the webhook service.
type Repository interface {
	InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error
	UpsertSubscription(ctx context.Context, tx pgx.Tx, sub Subscription) (Subscription, error)
	InsertPayment(ctx context.Context, tx pgx.Tx, p Payment) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
	GetPlanBySlug(ctx context.Context, slug string) (Plan, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (Subscription, error)
}

// Processor event types the service understands. Unknown types are
// acknowledged without effect so the processor stops retrying them.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventPaymentFailed       = "invoice.payment_failed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookRequest is the processor event normalized for the service. EventID
// doubles as the idempotency key.
type WebhookRequest struct {
	EventID              string
	EventType            string
	UserID               string
	PlanSlug             string
	StripeSubscriptionID *string
	CurrentPeriodEnd     *time.Time
	Amount               decimal.Decimal
	Currency             string
}

type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// HandleWebhook applies one processor event exactly once. Replays return
// nil so the processor receives a 2xx and stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, req WebhookRequest) error {
	if req.EventID == "" {
		return fmt.Errorf("billing: missing event id")
	}
	if req.UserID == "" {
		return fmt.Errorf("billing: missing user id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("billing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.InsertIdempotencyKey(ctx, tx, req.EventID); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			return nil
		}
		return err
	}

	if err := s.applyEvent(ctx, tx, req); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("billing: commit tx: %w", err)
	}

	log.WithFields(log.Fields{
		"event_type": req.EventType,
		"user_id":    req.UserID,
	}).Info("billing webhook applied")

	return nil
}

func (s *Service) applyEvent(ctx context.Context, tx pgx.Tx, req WebhookRequest) error {
	switch req.EventType {
	case EventCheckoutCompleted, EventInvoicePaid:
		sub, err := s.repo.UpsertSubscription(ctx, tx, Subscription{
			ID:                   s.idGenerator(),
			UserID:               req.UserID,
			PlanSlug:             req.PlanSlug,
			Status:               SubActive,
			StripeSubscriptionID: req.StripeSubscriptionID,
			CurrentPeriodEnd:     req.CurrentPeriodEnd,
		})
		if err != nil {
			return err
		}
		if req.Amount.IsPositive() {
			subID := sub.ID
			if err := s.repo.InsertPayment(ctx, tx, Payment{
				ID:             s.idGenerator(),
				UserID:         req.UserID,
				SubscriptionID: &subID,
				Amount:         req.Amount,
				Currency:       currencyOrDefault(req.Currency),
				Status:         "succeeded",
				StripeEventID:  req.EventID,
			}); err != nil {
				return err
			}
		}
		return s.repo.EnqueueOutbox(ctx, tx, "billing.subscription_activated", map[string]any{
			"user_id":   req.UserID,
			"plan_slug": req.PlanSlug,
		})

	case EventPaymentFailed:
		if _, err := s.repo.UpsertSubscription(ctx, tx, Subscription{
			ID:       s.idGenerator(),
			UserID:   req.UserID,
			PlanSlug: req.PlanSlug,
			Status:   SubPastDue,
		}); err != nil {
			return err
		}
		if err := s.repo.InsertPayment(ctx, tx, Payment{
			ID:            s.idGenerator(),
			UserID:        req.UserID,
			Amount:        req.Amount,
			Currency:      currencyOrDefault(req.Currency),
			Status:        "failed",
			StripeEventID: req.EventID,
		}); err != nil {
			return err
		}
		return s.repo.EnqueueOutbox(ctx, tx, "billing.payment_failed", map[string]any{
			"user_id": req.UserID,
		})

	case EventSubscriptionDeleted:
		if _, err := s.repo.UpsertSubscription(ctx, tx, Subscription{
			ID:       s.idGenerator(),
			UserID:   req.UserID,
			PlanSlug: req.PlanSlug,
			Status:   SubCancelled,
		}); err != nil {
			return err
		}
		return s.repo.EnqueueOutbox(ctx, tx, "billing.subscription_cancelled", map[string]any{
			"user_id": req.UserID,
		})

	default:
		log.WithField("event_type", req.EventType).Debug("ignoring unhandled billing event")
		return nil
	}
}

// GetPlan resolves a tier by slug.
func (s *Service) GetPlan(ctx context.Context, slug string) (Plan, error) {
	return s.repo.GetPlanBySlug(ctx, slug)
}

// SubscriptionFor returns the user's current subscription row.
func (s *Service) SubscriptionFor(ctx context.Context, userID string) (Subscription, error) {
	return s.repo.GetSubscriptionByUser(ctx, userID)
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "usd"
	}
	return c
}
