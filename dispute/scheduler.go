package dispute

import (
	"fmt"

	"github.com/binhusmachado/creditrepair-pro/report"
)

// RoundPlan is one proposed new round for a bureau. Nothing is persisted
// here; the service commits plans atomically.
type RoundPlan struct {
	Bureau         report.Bureau
	Number         int
	EscalationTier bool
	Items          []Item
}

// ScheduleRounds partitions the ordered item sequence by bureau and fills at
// most one new round per bureau, up to maxItems each. Bureaus with a round
// still in drafted/sent/awaiting_response get nothing: their items stay
// deferred and keep their relative priority order for the next opening.
// lastNumber carries the highest existing round number per bureau so new
// rounds stay contiguous from 1.
func ScheduleRounds(items []Item, openBureaus map[report.Bureau]bool, lastNumber map[report.Bureau]int, maxItems int) ([]RoundPlan, error) {
	if maxItems < 1 {
		return nil, fmt.Errorf("dispute: max items per round must be at least 1, got %d", maxItems)
	}

	byBureau := map[report.Bureau][]Item{}
	for _, item := range items {
		byBureau[item.Bureau] = append(byBureau[item.Bureau], item)
	}

	plans := make([]RoundPlan, 0, len(byBureau))
	for _, bureau := range report.AllBureaus() {
		queue := byBureau[bureau]
		if len(queue) == 0 || openBureaus[bureau] {
			continue
		}

		take := len(queue)
		if take > maxItems {
			take = maxItems
		}

		number := lastNumber[bureau] + 1
		selected := make([]Item, take)
		copy(selected, queue[:take])
		for i := range selected {
			tmpl, err := SelectTemplate(selected[i].Category, number, false)
			if err != nil {
				return nil, err
			}
			selected[i].TemplateID = tmpl
			// Ranks restart per round; the global plan order is preserved.
			selected[i].Rank = i + 1
		}

		plans = append(plans, RoundPlan{
			Bureau: bureau,
			Number: number,
			Items:  selected,
		})
	}
	return plans, nil
}

// EscalationPlan seeds the successor round for an escalated predecessor:
// same bureau, next number, carrying the predecessor's unresolved items with
// escalation-tier templates. Items the bureau already deleted or corrected
// stay behind.
func EscalationPlan(predecessor Round, maxItems int) (RoundPlan, error) {
	if maxItems < 1 {
		return RoundPlan{}, fmt.Errorf("dispute: max items per round must be at least 1, got %d", maxItems)
	}

	carried := make([]Item, 0, len(predecessor.Items))
	for _, item := range predecessor.Items {
		if item.Outcome != nil && (*item.Outcome == OutcomeDeleted || *item.Outcome == OutcomeUpdated) {
			continue
		}
		carried = append(carried, item)
		if len(carried) == maxItems {
			break
		}
	}

	number := predecessor.Number + 1
	seeded := make([]Item, len(carried))
	for i, item := range carried {
		tmpl, err := SelectTemplate(item.Category, number, true)
		if err != nil {
			return RoundPlan{}, err
		}
		seeded[i] = Item{
			ClientID:    item.ClientID,
			Bureau:      item.Bureau,
			FindingID:   item.FindingID,
			TradelineID: item.TradelineID,
			Category:    item.Category,
			Severity:    item.Severity,
			Basis:       item.Basis,
			Rank:        i + 1,
			TemplateID:  tmpl,
		}
	}

	return RoundPlan{
		Bureau:         predecessor.Bureau,
		Number:         number,
		EscalationTier: true,
		Items:          seeded,
	}, nil
}
