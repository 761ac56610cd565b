package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func TestHandleWebhook_Idempotent(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{insertKeyErr: ErrDuplicateIdempotencyKey}
	svc := NewService(pool, repo)

	req := WebhookRequest{
		EventID:   "evt-1",
		EventType: EventInvoicePaid,
		UserID:    "user-1",
		PlanSlug:  "basic",
		Amount:    decimal.RequireFromString("79.99"),
	}

	if err := svc.HandleWebhook(context.Background(), req); err != nil {
		t.Fatalf("expected nil error on replay, got %v", err)
	}
	if pool.tx == nil {
		t.Fatal("expected transaction to be opened")
	}
	if pool.tx.committed {
		t.Error("expected commit skipped on replay")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback on replay")
	}
	if len(repo.upserts) != 0 {
		t.Error("expected no subscription writes on replay")
	}
}

func TestHandleWebhook_InvoicePaidActivates(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{}
	svc := NewService(pool, repo)

	req := WebhookRequest{
		EventID:   "evt-2",
		EventType: EventInvoicePaid,
		UserID:    "user-1",
		PlanSlug:  "professional",
		Amount:    decimal.RequireFromString("149.99"),
	}

	if err := svc.HandleWebhook(context.Background(), req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(repo.upserts) != 1 || repo.upserts[0].Status != SubActive {
		t.Fatalf("expected one active upsert, got %+v", repo.upserts)
	}
	if len(repo.payments) != 1 || repo.payments[0].Status != "succeeded" {
		t.Fatalf("expected one succeeded payment, got %+v", repo.payments)
	}
	if len(repo.outbox) != 1 || repo.outbox[0] != "billing.subscription_activated" {
		t.Fatalf("expected activation outbox message, got %v", repo.outbox)
	}
}

func TestHandleWebhook_PaymentFailedMarksPastDue(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{}
	svc := NewService(pool, repo)

	req := WebhookRequest{
		EventID:   "evt-3",
		EventType: EventPaymentFailed,
		UserID:    "user-1",
		PlanSlug:  "basic",
		Amount:    decimal.RequireFromString("79.99"),
	}

	if err := svc.HandleWebhook(context.Background(), req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.upserts[0].Status != SubPastDue {
		t.Errorf("expected past_due, got %s", repo.upserts[0].Status)
	}
	if repo.payments[0].Status != "failed" {
		t.Errorf("expected failed payment record, got %s", repo.payments[0].Status)
	}
}

func TestHandleWebhook_SubscriptionDeletedCancels(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{}
	svc := NewService(pool, repo)

	req := WebhookRequest{
		EventID:   "evt-4",
		EventType: EventSubscriptionDeleted,
		UserID:    "user-1",
		PlanSlug:  "basic",
	}

	if err := svc.HandleWebhook(context.Background(), req); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.upserts[0].Status != SubCancelled {
		t.Errorf("expected cancelled, got %s", repo.upserts[0].Status)
	}
	if len(repo.payments) != 0 {
		t.Error("expected no payment record for cancellation")
	}
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{}
	svc := NewService(pool, repo)

	req := WebhookRequest{
		EventID:   "evt-5",
		EventType: "customer.updated",
		UserID:    "user-1",
	}

	if err := svc.HandleWebhook(context.Background(), req); err != nil {
		t.Fatalf("expected unknown event acknowledged, got %v", err)
	}
	if !pool.tx.committed {
		t.Error("expected commit so the idempotency key sticks")
	}
	if len(repo.upserts) != 0 {
		t.Error("expected no subscription writes for unknown event")
	}
}

func TestHandleWebhook_RejectsMissingFields(t *testing.T) {
	svc := NewService(&fakePool{}, &fakeRepo{})

	if err := svc.HandleWebhook(context.Background(), WebhookRequest{UserID: "user-1"}); err == nil {
		t.Error("expected error for missing event id")
	}
	if err := svc.HandleWebhook(context.Background(), WebhookRequest{EventID: "evt-1"}); err == nil {
		t.Error("expected error for missing user id")
	}
}

type fakeRepo struct {
	insertKeyErr error

	upserts  []Subscription
	payments []Payment
	outbox   []string
}

func (f *fakeRepo) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	return f.insertKeyErr
}

func (f *fakeRepo) UpsertSubscription(ctx context.Context, tx pgx.Tx, sub Subscription) (Subscription, error) {
	f.upserts = append(f.upserts, sub)
	return sub, nil
}

func (f *fakeRepo) InsertPayment(ctx context.Context, tx pgx.Tx, p Payment) error {
	f.payments = append(f.payments, p)
	return nil
}

func (f *fakeRepo) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	f.outbox = append(f.outbox, topic)
	return nil
}

func (f *fakeRepo) GetPlanBySlug(ctx context.Context, slug string) (Plan, error) {
	return Plan{}, ErrPlanNotFound
}

func (f *fakeRepo) GetSubscriptionByUser(ctx context.Context, userID string) (Subscription, error) {
	return Subscription{}, ErrPlanNotFound
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
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
