package dispute

import (
	"fmt"
	"sort"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/report"
)

// BuildPlan turns a client's unresolved findings into an ordered sequence of
// dispute items. Findings already covered by an open round for the same
// bureau are excluded, preserving the at-most-one-active-dispute per
// tradeline per bureau rule. An empty result is the normal terminal state,
// not an error.
func BuildPlan(findings []analyzer.Finding, openRounds []Round) ([]Item, error) {
	covered := coveredKeys(openRounds)

	candidates := make([]analyzer.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Resolved || f.Superseded {
			continue
		}
		if !report.ValidBureau(f.Bureau) {
			return nil, fmt.Errorf("dispute: finding %s has invalid bureau %q", f.ID, f.Bureau)
		}
		if _, ok := covered[coverageKey(f.Bureau, f.TradelineID, f.ID)]; ok {
			continue
		}
		candidates = append(candidates, f)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		pa := analyzer.Categories[a.Category].Priority
		pb := analyzer.Categories[b.Category].Priority
		if pa != pb {
			return pa < pb
		}
		// Newer reports first.
		return a.ReportDate.After(b.ReportDate)
	})

	// Dedupe after sorting so the highest-priority finding per tradeline
	// wins; the rest wait for that dispute to close.
	items := make([]Item, 0, len(candidates))
	planned := map[string]struct{}{}
	for _, f := range candidates {
		key := coverageKey(f.Bureau, f.TradelineID, f.ID)
		if _, ok := planned[key]; ok {
			continue
		}
		planned[key] = struct{}{}
		basis, err := BasisFor(f.Category)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			ClientID:    f.ClientID,
			Bureau:      f.Bureau,
			FindingID:   f.ID,
			TradelineID: f.TradelineID,
			Category:    f.Category,
			Severity:    f.Severity,
			Basis:       basis,
			Rank:        len(items) + 1,
		})
	}
	return items, nil
}

// coveredKeys indexes every tradeline (or bare finding) that an open round
// is already disputing, keyed per bureau.
func coveredKeys(rounds []Round) map[string]struct{} {
	covered := map[string]struct{}{}
	for _, r := range rounds {
		if !r.Status.IsOpen() {
			continue
		}
		for _, item := range r.Items {
			covered[coverageKey(item.Bureau, item.TradelineID, item.FindingID)] = struct{}{}
		}
	}
	return covered
}

func coverageKey(bureau report.Bureau, tradelineID *string, findingID string) string {
	if tradelineID != nil && *tradelineID != "" {
		return string(bureau) + "|tl|" + *tradelineID
	}
	return string(bureau) + "|f|" + findingID
}
