package dispute

import (
	"time"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/report"
)

// Status is the lifecycle of a dispute round.
//
//	drafted → sent → awaiting_response → {resolved | escalated}
//
// escalated is terminal for the round but triggers a successor round.
type Status string

const (
	StatusDrafted          Status = "drafted"
	StatusSent             Status = "sent"
	StatusAwaitingResponse Status = "awaiting_response"
	StatusResolved         Status = "resolved"
	StatusEscalated        Status = "escalated"
)

// IsOpen reports whether a round in this status blocks opening the next
// round for its bureau.
func (s Status) IsOpen() bool {
	switch s {
	case StatusDrafted, StatusSent, StatusAwaitingResponse:
		return true
	default:
		return false
	}
}

// ValidTransition encodes the round state machine.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusDrafted:
		return to == StatusSent
	case StatusSent:
		return to == StatusAwaitingResponse || to == StatusResolved || to == StatusEscalated
	case StatusAwaitingResponse:
		return to == StatusResolved || to == StatusEscalated
	default:
		return false
	}
}

// Outcome is the bureau's per-item answer.
type Outcome string

const (
	OutcomeDeleted    Outcome = "deleted"
	OutcomeUpdated    Outcome = "updated"
	OutcomeVerified   Outcome = "verified"
	OutcomeNoResponse Outcome = "no_response"
)

// Item is one actionable dispute derived from a finding. Immutable once it
// is part of a round; the outcome field is the only post-creation write.
type Item struct {
	ID          string
	RoundID     *string
	ClientID    string
	Bureau      report.Bureau
	FindingID   string
	TradelineID *string
	Category    analyzer.Category
	Severity    analyzer.Severity
	// Basis is the legal citation backing the dispute.
	Basis string
	// Rank is the item's position in the strategy ordering, 1-based.
	Rank       int
	TemplateID TemplateID
	Outcome    *Outcome
	CreatedAt  time.Time
}

// Round is a bounded batch of items sent to one bureau. Round numbers are
// contiguous per (client, bureau) starting at 1.
type Round struct {
	ID       string
	ClientID string
	Bureau   report.Bureau
	Number   int
	Status   Status
	// EscalationTier marks rounds seeded from an escalated predecessor;
	// they use the escalation letter family regardless of round number.
	EscalationTier bool
	Items          []Item
	CreatedAt      time.Time
	SentAt         *time.Time
	RespondBy      *time.Time
	ClosedAt       *time.Time
}
