package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/binhusmachado/creditrepair-pro/dispute"
)

// StrategyRunner repeatedly runs the strategy pipeline for one client.
// Concurrent runners race to open rounds per bureau; losers defer, so
// every error except context cancellation is tolerated.
func StrategyRunner(ctx context.Context, svc *dispute.Service, clientID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.Run(ctx, clientID)
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Sender picks a random drafted round and marks it sent, then sometimes
// advances it to awaiting_response. Transition conflicts with other actors
// are expected and tolerated.
func Sender(ctx context.Context, svc *dispute.Service, pool *pgxpool.Pool, clientID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var roundID string
		if err := pool.QueryRow(ctx, `SELECT id FROM dispute_rounds WHERE client_id=$1 AND status='drafted' ORDER BY random() LIMIT 1`, clientID).Scan(&roundID); err == nil {
			if _, err := svc.MarkSent(ctx, roundID); err == nil && rand.Intn(2) == 0 {
				_, _ = svc.MarkAwaitingResponse(ctx, roundID)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Responder plays the bureau: it picks an open sent or awaiting round,
// loads its items and records a random outcome for each one.
func Responder(ctx context.Context, svc *dispute.Service, pool *pgxpool.Pool, clientID string, stop <-chan struct{}) error {
	outcomes := []dispute.Outcome{
		dispute.OutcomeDeleted,
		dispute.OutcomeUpdated,
		dispute.OutcomeVerified,
		dispute.OutcomeNoResponse,
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var roundID string
		err := pool.QueryRow(ctx, `SELECT id FROM dispute_rounds WHERE client_id=$1 AND status IN ('sent','awaiting_response') ORDER BY random() LIMIT 1`, clientID).Scan(&roundID)
		if err == nil {
			rows, qerr := pool.Query(ctx, `SELECT id FROM dispute_items WHERE round_id=$1`, roundID)
			if qerr == nil {
				byItem := make(map[string]dispute.Outcome)
				for rows.Next() {
					var itemID string
					if rows.Scan(&itemID) == nil {
						byItem[itemID] = outcomes[rand.Intn(len(outcomes))]
					}
				}
				rows.Close()
				if len(byItem) > 0 {
					// races with Sweeper closing the round are expected
					_, _ = svc.RecordOutcome(ctx, roundID, byItem)
				}
			}
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Sweeper forces a random open round past its response deadline and then
// runs the expiry sweep, racing Responder for the same rounds.
func Sweeper(ctx context.Context, svc *dispute.Service, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = pool.Exec(ctx, `UPDATE dispute_rounds SET respond_by = now() - interval '1 hour'
                               WHERE id IN (SELECT id FROM dispute_rounds
                                            WHERE status IN ('sent','awaiting_response') AND respond_by IS NOT NULL
                                            ORDER BY random() LIMIT 1)`)
		_, _ = svc.SweepExpired(ctx)
		time.Sleep(time.Duration(60+rand.Intn(80)) * time.Millisecond)
	}
}

// FindingSeeder keeps the strategy fed: it inserts a fresh tradeline and a
// live finding on a random bureau so new rounds always have material.
func FindingSeeder(ctx context.Context, pool *pgxpool.Pool, clientID string, reportIDs map[string]string, stop <-chan struct{}) error {
	bureaus := make([]string, 0, len(reportIDs))
	for b := range reportIDs {
		bureaus = append(bureaus, b)
	}
	categories := []string{"paid_collection", "outdated_negative", "duplicate_account", "balance_exceeds_limit"}
	severities := []string{"critical", "high", "medium", "low"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		bureau := bureaus[rand.Intn(len(bureaus))]
		reportID := reportIDs[bureau]
		var tradelineID string
		err := pool.QueryRow(ctx, `INSERT INTO tradeline_accounts
                (report_id, client_id, bureau, creditor_name, account_number, status, date_reported, is_collection)
                VALUES ($1,$2,$3,$4,$5,'collection', now(), TRUE) RETURNING id`,
			reportID, clientID, bureau, fmt.Sprintf("Stress Collections %d", rand.Int63()), fmt.Sprintf("%012d", rand.Int63n(1e12))).Scan(&tradelineID)
		if err == nil {
			_, _ = pool.Exec(ctx, `INSERT INTO findings
                    (client_id, report_id, tradeline_id, bureau, category, severity, detected_at, report_date)
                    VALUES ($1,$2,$3,$4,$5,$6, now(), now())`,
				clientID, reportID, tradelineID, bureau,
				categories[rand.Intn(len(categories))], severities[rand.Intn(len(severities))])
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// OutboxWorker drains unpublished outbox rows in small batches using
// SKIP LOCKED so concurrent workers never double-claim a row.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = pool.Exec(ctx, `UPDATE outbox SET published_at = now()
                               WHERE id IN (SELECT id FROM outbox WHERE published_at IS NULL
                                            ORDER BY created_at LIMIT 10 FOR UPDATE SKIP LOCKED)`)
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}
