package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/report"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RoundStore is the persistence surface the service drives.
type RoundStore interface {
	CreateRound(ctx context.Context, tx pgx.Tx, round Round) (Round, error)
	OpenRounds(ctx context.Context, clientID string) ([]Round, error)
	ListRounds(ctx context.Context, clientID string, bureau report.Bureau) ([]Round, error)
	GetRound(ctx context.Context, roundID string) (Round, error)
	LastRoundNumbers(ctx context.Context, clientID string) (map[report.Bureau]int, error)
	GetRoundForUpdate(ctx context.Context, tx pgx.Tx, roundID string) (Round, error)
	UpdateRoundStatus(ctx context.Context, tx pgx.Tx, round Round, next Status, now time.Time, respondBy *time.Time) (Round, error)
	SetItemOutcome(ctx context.Context, tx pgx.Tx, itemID string, outcome Outcome) error
	ResolveFindings(ctx context.Context, tx pgx.Tx, findingIDs []string, at time.Time) error
	ExpiredRounds(ctx context.Context, now time.Time) ([]Round, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, clientID string, roundID *string, eventType string, payload map[string]any) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// FindingSource supplies the unresolved findings a strategy run consumes.
type FindingSource interface {
	ListUnresolved(ctx context.Context, clientID string) ([]analyzer.Finding, error)
}

// Config carries the scheduling knobs. Validated at construction; bad
// values are configuration defects.
type Config struct {
	MaxItemsPerRound int
	ResponseWindow   time.Duration
}

// Service owns the dispute strategy pipeline: build plan, schedule rounds,
// drive round status transitions, escalate on expiry.
type Service struct {
	pool        TxBeginner
	repo        RoundStore
	findings    FindingSource
	cfg         Config
	idGenerator func() string
	now         func() time.Time
}

// RunResult reports what one strategy run produced.
type RunResult struct {
	Rounds []Round
	// Deferred counts plan items left unscheduled because their bureau has
	// an open round or a full new round. They stay queued for the next run.
	Deferred int
}

func NewService(pool TxBeginner, repo RoundStore, findings FindingSource, cfg Config) (*Service, error) {
	if cfg.MaxItemsPerRound < 1 {
		return nil, fmt.Errorf("dispute: max items per round must be at least 1, got %d", cfg.MaxItemsPerRound)
	}
	if cfg.ResponseWindow <= 0 {
		return nil, fmt.Errorf("dispute: response window must be positive, got %s", cfg.ResponseWindow)
	}
	if err := ValidateTables(); err != nil {
		return nil, err
	}
	return &Service{
		pool:        pool,
		repo:        repo,
		findings:    findings,
		cfg:         cfg,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}, nil
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run executes one strategy pass for a client: reads the unresolved finding
// snapshot, builds the ordered plan, and opens at most one new round per
// bureau. A client with nothing to dispute gets an empty result, not an
// error. When a concurrent run wins the race to open a bureau's round, this
// run re-reads state and defers that bureau's items.
func (s *Service) Run(ctx context.Context, clientID string) (RunResult, error) {
	if clientID == "" {
		return RunResult{}, fmt.Errorf("dispute: missing client id")
	}

	findings, err := s.findings.ListUnresolved(ctx, clientID)
	if err != nil {
		return RunResult{}, err
	}

	open, err := s.repo.OpenRounds(ctx, clientID)
	if err != nil {
		return RunResult{}, err
	}
	lastNumbers, err := s.repo.LastRoundNumbers(ctx, clientID)
	if err != nil {
		return RunResult{}, err
	}

	plan, err := BuildPlan(findings, open)
	if err != nil {
		return RunResult{}, err
	}

	openBureaus := map[report.Bureau]bool{}
	for _, r := range open {
		openBureaus[r.Bureau] = true
	}

	plans, err := ScheduleRounds(plan, openBureaus, lastNumbers, s.cfg.MaxItemsPerRound)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{Deferred: len(plan)}
	for _, rp := range plans {
		created, err := s.commitRoundPlan(ctx, clientID, rp)
		if err != nil {
			if errors.Is(err, ErrOpenRoundExists) || errors.Is(err, ErrStalePlan) {
				log.WithFields(log.Fields{
					"client_id": clientID,
					"bureau":    string(rp.Bureau),
				}).Warn("round creation lost race, deferring items")
				continue
			}
			return RunResult{}, err
		}
		result.Rounds = append(result.Rounds, created)
		result.Deferred -= len(created.Items)
	}

	log.WithFields(log.Fields{
		"client_id": clientID,
		"rounds":    len(result.Rounds),
		"deferred":  result.Deferred,
	}).Info("strategy run complete")

	return result, nil
}

func (s *Service) commitRoundPlan(ctx context.Context, clientID string, rp RoundPlan) (Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Round{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	round := Round{
		ID:             s.idGenerator(),
		ClientID:       clientID,
		Bureau:         rp.Bureau,
		Number:         rp.Number,
		Status:         StatusDrafted,
		EscalationTier: rp.EscalationTier,
		Items:          make([]Item, len(rp.Items)),
	}
	for i, item := range rp.Items {
		item.ID = s.idGenerator()
		item.ClientID = clientID
		round.Items[i] = item
	}

	created, err := s.repo.CreateRound(ctx, tx, round)
	if err != nil {
		return Round{}, err
	}

	roundID := created.ID
	if err := s.repo.AppendEvent(ctx, tx, clientID, &roundID, "ROUND_DRAFTED", map[string]any{
		"bureau":       string(created.Bureau),
		"round_number": created.Number,
		"items":        len(created.Items),
		"escalation":   created.EscalationTier,
	}); err != nil {
		return Round{}, err
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, "dispute.round_drafted", map[string]any{
		"round_id":  created.ID,
		"client_id": clientID,
		"bureau":    string(created.Bureau),
	}); err != nil {
		return Round{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Round{}, fmt.Errorf("dispute: commit round: %w", err)
	}
	return created, nil
}

// MarkSent transitions drafted → sent and starts the response-window timer.
func (s *Service) MarkSent(ctx context.Context, roundID string) (Round, error) {
	now := s.now().UTC()
	respondBy := now.Add(s.cfg.ResponseWindow)
	return s.transition(ctx, roundID, StatusSent, &respondBy, nil)
}

// MarkAwaitingResponse transitions sent → awaiting_response once delivery is
// confirmed.
func (s *Service) MarkAwaitingResponse(ctx context.Context, roundID string) (Round, error) {
	return s.transition(ctx, roundID, StatusAwaitingResponse, nil, nil)
}

// RecordOutcome closes a round as resolved with the bureau's per-item
// answers. Findings behind deleted or updated items are marked resolved and
// never re-enter the strategy; verified items leave their findings live for
// a later escalation pass.
func (s *Service) RecordOutcome(ctx context.Context, roundID string, outcomes map[string]Outcome) (Round, error) {
	apply := func(tx pgx.Tx, round Round) (Round, error) {
		now := s.now().UTC()
		resolvedFindings := make([]string, 0, len(round.Items))
		for i := range round.Items {
			item := &round.Items[i]
			outcome, ok := outcomes[item.ID]
			if !ok {
				continue
			}
			if err := s.repo.SetItemOutcome(ctx, tx, item.ID, outcome); err != nil {
				return Round{}, err
			}
			item.Outcome = &outcome
			if outcome == OutcomeDeleted || outcome == OutcomeUpdated {
				resolvedFindings = append(resolvedFindings, item.FindingID)
			}
		}
		if err := s.repo.ResolveFindings(ctx, tx, resolvedFindings, now); err != nil {
			return Round{}, err
		}
		return round, nil
	}
	return s.transition(ctx, roundID, StatusResolved, nil, apply)
}

// SweepExpired escalates every round whose response window elapsed and, in
// the same transaction, opens the successor round seeded with the items the
// bureau never fixed. Runs on a schedule; safe to run concurrently because
// the losing sweep sees the terminal status on re-read and skips.
func (s *Service) SweepExpired(ctx context.Context) ([]Round, error) {
	now := s.now().UTC()
	expired, err := s.repo.ExpiredRounds(ctx, now)
	if err != nil {
		return nil, err
	}

	successors := make([]Round, 0, len(expired))
	for _, round := range expired {
		successor, err := s.escalate(ctx, round.ID)
		if err != nil {
			if errors.Is(err, ErrBadTransition) || errors.Is(err, ErrRoundNotFound) {
				continue
			}
			return nil, err
		}
		if successor != nil {
			successors = append(successors, *successor)
		}
	}
	return successors, nil
}

func (s *Service) escalate(ctx context.Context, roundID string) (*Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()

	round, err := s.repo.GetRoundForUpdate(ctx, tx, roundID)
	if err != nil {
		return nil, err
	}
	// Re-check under lock: a concurrent sweep or a late response may have
	// closed the round between the list query and here.
	if !round.Status.IsOpen() || round.RespondBy == nil || round.RespondBy.After(now) {
		return nil, ErrBadTransition
	}

	escalated, err := s.repo.UpdateRoundStatus(ctx, tx, round, StatusEscalated, now, nil)
	if err != nil {
		return nil, err
	}

	plan, err := EscalationPlan(escalated, s.cfg.MaxItemsPerRound)
	if err != nil {
		return nil, err
	}

	var successor *Round
	if len(plan.Items) > 0 {
		next := Round{
			ID:             s.idGenerator(),
			ClientID:       round.ClientID,
			Bureau:         plan.Bureau,
			Number:         plan.Number,
			Status:         StatusDrafted,
			EscalationTier: true,
			Items:          make([]Item, len(plan.Items)),
		}
		for i, item := range plan.Items {
			item.ID = s.idGenerator()
			item.ClientID = round.ClientID
			next.Items[i] = item
		}
		created, err := s.repo.CreateRound(ctx, tx, next)
		if err != nil {
			return nil, err
		}
		successor = &created
	}

	roundRef := round.ID
	payload := map[string]any{
		"bureau":       string(round.Bureau),
		"round_number": round.Number,
	}
	if successor != nil {
		payload["successor_round"] = successor.Number
	}
	if err := s.repo.AppendEvent(ctx, tx, round.ClientID, &roundRef, "ROUND_ESCALATED", payload); err != nil {
		return nil, err
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, "dispute.round_escalated", map[string]any{
		"round_id":  round.ID,
		"client_id": round.ClientID,
		"bureau":    string(round.Bureau),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispute: commit escalation: %w", err)
	}

	log.WithFields(log.Fields{
		"client_id": round.ClientID,
		"bureau":    string(round.Bureau),
		"round":     round.Number,
	}).Info("round escalated")

	return successor, nil
}

// ListRounds exposes round history for presentation layers.
func (s *Service) ListRounds(ctx context.Context, clientID string, bureau report.Bureau) ([]Round, error) {
	return s.repo.ListRounds(ctx, clientID, bureau)
}

// GetRound loads one round with its items.
func (s *Service) GetRound(ctx context.Context, roundID string) (Round, error) {
	return s.repo.GetRound(ctx, roundID)
}

// transition applies one locked read-validate-write cycle. The optional
// apply hook runs between the lock and the status write so per-item work
// commits atomically with the transition.
func (s *Service) transition(ctx context.Context, roundID string, next Status, respondBy *time.Time, apply func(pgx.Tx, Round) (Round, error)) (Round, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Round{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	round, err := s.repo.GetRoundForUpdate(ctx, tx, roundID)
	if err != nil {
		return Round{}, err
	}

	if apply != nil {
		round, err = apply(tx, round)
		if err != nil {
			return Round{}, err
		}
	}

	now := s.now().UTC()
	updated, err := s.repo.UpdateRoundStatus(ctx, tx, round, next, now, respondBy)
	if err != nil {
		return Round{}, err
	}

	roundRef := updated.ID
	if err := s.repo.AppendEvent(ctx, tx, updated.ClientID, &roundRef, "ROUND_STATUS_CHANGED", map[string]any{
		"bureau":          string(updated.Bureau),
		"round_number":    updated.Number,
		"previous_status": string(round.Status),
		"next_status":     string(next),
	}); err != nil {
		return Round{}, err
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, "dispute.round_status_changed", map[string]any{
		"round_id": updated.ID,
		"previous": string(round.Status),
		"next":     string(next),
	}); err != nil {
		return Round{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Round{}, fmt.Errorf("dispute: commit transition: %w", err)
	}
	return updated, nil
}
