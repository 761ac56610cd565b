package dispute

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/report"
)

// TestDisputeLifecycle_Integration connects to a real PostgreSQL via
// DATABASE_URL and drives a full round lifecycle through the repository and
// service: plan, create, send, record outcomes, re-plan.
func TestDisputeLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"dispute_rounds", "dispute_items", "findings", "outbox"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skipf("database schema missing table %s; apply migrations/ first", table)
		}
	}

	var (
		userID     string
		clientID   string
		reportID   string
		tradelineA string
		tradelineB string
		findingIDs [2]string
	)

	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash, role)
            VALUES ($1, 'Integration Operator', 'x', 'staff') RETURNING id`,
		fmt.Sprintf("itest+%d@example.com", time.Now().UnixNano())).Scan(&userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO clients
            (owner_user_id, full_name, email, address, city, state, zip_code, ssn_last_four)
            VALUES ($1, 'Integration Client', $2, '1 Main St', 'Austin', 'TX', '78701', '1234') RETURNING id`,
		userID, fmt.Sprintf("ic+%d@example.com", time.Now().UnixNano())).Scan(&clientID); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO credit_reports (client_id, bureau, source, report_date)
            VALUES ($1, 'equifax', 'itest', now()) RETURNING id`, clientID).Scan(&reportID); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	seedTradeline := func(name string) string {
		var id string
		if err := pool.QueryRow(ctx, `INSERT INTO tradeline_accounts
                (report_id, client_id, bureau, creditor_name, account_number, status, date_reported, is_collection)
                VALUES ($1, $2, 'equifax', $3, '400011112222', 'collection', now(), TRUE) RETURNING id`,
			reportID, clientID, name).Scan(&id); err != nil {
			t.Fatalf("seed tradeline %s: %v", name, err)
		}
		return id
	}
	tradelineA = seedTradeline("Integration Collections A")
	tradelineB = seedTradeline("Integration Collections B")
	for i, tl := range []string{tradelineA, tradelineB} {
		if err := pool.QueryRow(ctx, `INSERT INTO findings
                (client_id, report_id, tradeline_id, bureau, category, severity, detected_at, report_date)
                VALUES ($1, $2, $3, 'equifax', 'paid_collection', 'medium', now(), now()) RETURNING id`,
			clientID, reportID, tl).Scan(&findingIDs[i]); err != nil {
			t.Fatalf("seed finding: %v", err)
		}
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM dispute_items WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM dispute_events WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM outbox WHERE payload->>'client_id' = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM dispute_rounds WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM findings WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM tradeline_accounts WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM credit_reports WHERE client_id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM clients WHERE id = $1`, clientID)
		pool.Exec(ctx2, `DELETE FROM users WHERE id = $1`, userID)
	})

	findings := analyzer.NewService(pool, analyzer.NewRepository(pool), report.NewRepository(pool))
	svc, err := NewService(pool, NewRepository(pool), findings, Config{
		MaxItemsPerRound: 5,
		ResponseWindow:   30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	// First run opens round 1 with both findings.
	first, err := svc.Run(ctx, clientID)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first.Rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(first.Rounds))
	}
	round := first.Rounds[0]
	if round.Number != 1 || len(round.Items) != 2 {
		t.Fatalf("expected round 1 with 2 items, got number=%d items=%d", round.Number, len(round.Items))
	}

	// Second run must not open another round for the same bureau.
	second, err := svc.Run(ctx, clientID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Rounds) != 0 {
		t.Fatalf("expected no new round while round 1 is open, got %d", len(second.Rounds))
	}
	var openCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM dispute_rounds
            WHERE client_id = $1 AND status IN ('drafted','sent','awaiting_response')`, clientID).Scan(&openCount); err != nil {
		t.Fatalf("count open rounds: %v", err)
	}
	if openCount != 1 {
		t.Fatalf("expected exactly 1 open round, got %d", openCount)
	}

	// Send and close the round; the deleted item's finding resolves, the
	// verified one stays live.
	if _, err := svc.MarkSent(ctx, round.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	resolved, err := svc.RecordOutcome(ctx, round.ID, map[string]Outcome{
		round.Items[0].ID: OutcomeDeleted,
		round.Items[1].ID: OutcomeVerified,
	})
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Fatalf("expected resolved round, got %s", resolved.Status)
	}

	var resolvedCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM findings WHERE client_id = $1 AND resolved`, clientID).Scan(&resolvedCount); err != nil {
		t.Fatalf("count resolved findings: %v", err)
	}
	if resolvedCount != 1 {
		t.Fatalf("expected 1 resolved finding, got %d", resolvedCount)
	}

	// Third run re-disputes only the still-live finding in round 2.
	third, err := svc.Run(ctx, clientID)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if len(third.Rounds) != 1 {
		t.Fatalf("expected 1 new round, got %d", len(third.Rounds))
	}
	if third.Rounds[0].Number != 2 || len(third.Rounds[0].Items) != 1 {
		t.Fatalf("expected round 2 with 1 item, got number=%d items=%d",
			third.Rounds[0].Number, len(third.Rounds[0].Items))
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
