package letter

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binhusmachado/creditrepair-pro/ai"
	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/client"
	"github.com/binhusmachado/creditrepair-pro/dispute"
	"github.com/binhusmachado/creditrepair-pro/report"
)

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, l Letter) (Letter, error)
	GetByID(ctx context.Context, id string) (Letter, error)
	ListByRound(ctx context.Context, roundID string) ([]Letter, error)
	MarkSent(ctx context.Context, id string, at time.Time) (Letter, error)
}

// ClientSource resolves the consumer identification block.
type ClientSource interface {
	GetByID(ctx context.Context, id string) (client.Client, error)
}

// TradelineSource resolves creditor and account details for letter items.
type TradelineSource interface {
	GetTradeline(ctx context.Context, id string) (report.TradelineAccount, error)
}

// ReasonGenerator produces tailored dispute-reason wording. Optional; any
// error falls back to the static FCRA wording for the category.
type ReasonGenerator interface {
	GenerateDisputeReason(ctx context.Context, category analyzer.Category, accountSummary string) (string, error)
}

// Service renders and stores dispute letters for rounds.
type Service struct {
	pool        TxBeginner
	repo        Store
	clients     ClientSource
	tradelines  TradelineSource
	reasons     ReasonGenerator
	idGenerator func() string
	now         func() time.Time
}

func NewService(pool TxBeginner, repo Store, clients ClientSource, tradelines TradelineSource) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		clients:     clients,
		tradelines:  tradelines,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithReasonGenerator enables model-assisted dispute wording.
func (s *Service) WithReasonGenerator(g ReasonGenerator) *Service {
	s.reasons = g
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GenerateForRound renders one letter per template family used by the
// round's items and stores all of them atomically as drafts. Items sharing
// a template are grouped into a single letter, the way a round mails at
// most a handful of pages per bureau.
func (s *Service) GenerateForRound(ctx context.Context, round dispute.Round) ([]Letter, error) {
	if len(round.Items) == 0 {
		return nil, fmt.Errorf("letter: round %s has no items", round.ID)
	}
	contact, ok := ContactFor(round.Bureau)
	if !ok {
		return nil, fmt.Errorf("letter: no mailing contact for bureau %q", round.Bureau)
	}

	cl, err := s.clients.GetByID(ctx, round.ClientID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	data := RenderData{
		Date:        FormatDate(now),
		Bureau:      contact,
		Client:      clientView(cl),
		RoundNumber: round.Number,
	}

	// Preserve item rank order inside each template group.
	groups := map[dispute.TemplateID][]ItemView{}
	order := make([]dispute.TemplateID, 0, 2)
	for _, item := range round.Items {
		view, err := s.itemView(ctx, item)
		if err != nil {
			return nil, err
		}
		if _, seen := groups[item.TemplateID]; !seen {
			order = append(order, item.TemplateID)
		}
		groups[item.TemplateID] = append(groups[item.TemplateID], view)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("letter: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	letters := make([]Letter, 0, len(order))
	for _, tmplID := range order {
		data.Items = groups[tmplID]
		body, err := Render(tmplID, data)
		if err != nil {
			return nil, err
		}
		created, err := s.repo.Insert(ctx, tx, Letter{
			ID:         s.idGenerator(),
			ClientID:   round.ClientID,
			RoundID:    round.ID,
			Bureau:     round.Bureau,
			TemplateID: tmplID,
			Body:       body,
			Status:     StatusDraft,
		})
		if err != nil {
			return nil, err
		}
		letters = append(letters, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("letter: commit: %w", err)
	}

	log.WithFields(log.Fields{
		"client_id": round.ClientID,
		"round_id":  round.ID,
		"letters":   len(letters),
	}).Info("letters generated")

	return letters, nil
}

// MarkSent stamps a draft letter as mailed.
func (s *Service) MarkSent(ctx context.Context, letterID string) (Letter, error) {
	return s.repo.MarkSent(ctx, letterID, s.now().UTC())
}

func (s *Service) ListByRound(ctx context.Context, roundID string) ([]Letter, error) {
	return s.repo.ListByRound(ctx, roundID)
}

func (s *Service) itemView(ctx context.Context, item dispute.Item) (ItemView, error) {
	view := ItemView{
		Reason: ai.FallbackReason(item.Category),
		Basis:  item.Basis,
	}
	if item.TradelineID != nil && *item.TradelineID != "" {
		tl, err := s.tradelines.GetTradeline(ctx, *item.TradelineID)
		if err != nil {
			return ItemView{}, err
		}
		view.CreditorName = tl.CreditorName
		view.AccountNumber = maskAccountNumber(tl.AccountNumber)
	}
	if s.reasons != nil {
		summary := view.CreditorName + " " + view.AccountNumber
		if reason, err := s.reasons.GenerateDisputeReason(ctx, item.Category, summary); err == nil && reason != "" {
			view.Reason = reason
		}
	}
	return view, nil
}

func clientView(cl client.Client) ClientView {
	view := ClientView{
		FullName:    cl.FullName,
		Address:     cl.Address,
		City:        cl.City,
		State:       cl.State,
		ZipCode:     cl.ZipCode,
		SSNLastFour: cl.SSNLastFour,
	}
	if cl.DateOfBirth != nil {
		view.DateOfBirth = cl.DateOfBirth.Format("01/02/2006")
	}
	return view
}

// maskAccountNumber keeps the last four characters visible. Bureaus match
// accounts on partial numbers; the full number never needs to leave the
// database in letter form.
func maskAccountNumber(acct string) string {
	if len(acct) <= 4 {
		return acct
	}
	masked := make([]byte, len(acct)-4)
	for i := range masked {
		masked[i] = 'X'
	}
	return string(masked) + acct[len(acct)-4:]
}
