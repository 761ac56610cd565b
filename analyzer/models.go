package analyzer

import (
	"time"

	"github.com/binhusmachado/creditrepair-pro/report"
)

// Finding is one detected discrepancy tied to a tradeline snapshot (or a
// cross-bureau pair via RelatedTradelineID). Findings are never edited in
// place: re-detection on a newer report supersedes older ones.
type Finding struct {
	ID                 string
	ClientID           string
	ReportID           string
	TradelineID        *string
	RelatedTradelineID *string
	Bureau             report.Bureau
	Category           Category
	Severity           Severity
	// Details holds the specific values that triggered the rule.
	Details map[string]any

	DetectedAt time.Time
	// ReportDate is denormalized from the source report for recency ordering.
	ReportDate time.Time

	Resolved   bool
	ResolvedAt *time.Time
	Superseded bool
}
