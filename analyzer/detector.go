package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/binhusmachado/creditrepair-pro/report"
)

const (
	negativeItemAge = 7 * 365 * 24 * time.Hour
	inquiryAge      = 2 * 365 * 24 * time.Hour
	bankruptcyAge   = 10 * 365 * 24 * time.Hour
)

// Detector runs the fixed error checklist over tradeline snapshots. It is a
// pure transformation; persistence belongs to the service.
type Detector struct {
	now func() time.Time
}

func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Analyze applies every single-account rule, the duplicate check and the
// cross-bureau comparison to one client's snapshot set. Empty input yields
// empty output; that is the normal no-errors state.
func (d *Detector) Analyze(tradelines []report.TradelineAccount) []Finding {
	findings := []Finding{}
	for i := range tradelines {
		findings = append(findings, d.analyzeAccount(&tradelines[i])...)
	}
	findings = append(findings, d.detectDuplicates(tradelines)...)
	findings = append(findings, d.detectCrossBureau(tradelines)...)
	return findings
}

// AnalyzeInquiries flags hard inquiries past the two-year reporting limit.
func (d *Detector) AnalyzeInquiries(inquiries []report.Inquiry) []Finding {
	now := d.now().UTC()
	findings := []Finding{}
	for i := range inquiries {
		inq := inquiries[i]
		if now.Sub(inq.InquiryDate) > inquiryAge {
			findings = append(findings, Finding{
				ClientID: inq.ClientID,
				ReportID: inq.ReportID,
				Bureau:   inq.Bureau,
				Category: CatOutdatedInquiry,
				Details: map[string]any{
					"subscriber":   inq.SubscriberName,
					"inquiry_date": inq.InquiryDate.Format("2006-01-02"),
				},
			})
		}
	}
	return findings
}

func (d *Detector) analyzeAccount(tl *report.TradelineAccount) []Finding {
	now := d.now().UTC()
	findings := []Finding{}

	add := func(cat Category, details map[string]any) {
		findings = append(findings, newTradelineFinding(tl, cat, details))
	}

	// Balance vs limit.
	if tl.CreditLimit.IsPositive() && tl.Balance.GreaterThan(tl.CreditLimit) {
		add(CatBalanceExceedsLimit, map[string]any{
			"balance":      tl.Balance.String(),
			"credit_limit": tl.CreditLimit.String(),
		})
	}

	// Open revolving accounts must report a limit.
	if tl.Status == report.AccountOpen && tl.CreditLimit.IsZero() && isRevolving(tl.AccountType) {
		add(CatMissingCreditLimit, map[string]any{"account_type": tl.AccountType})
	}

	// 90+ day lates without the 30/60 steps that must precede them.
	if tl.Late90Count > 0 && (tl.Late30Count == 0 || tl.Late60Count == 0) {
		add(CatImpossibleLatePattern, map[string]any{
			"late_30": tl.Late30Count,
			"late_60": tl.Late60Count,
			"late_90": tl.Late90Count,
		})
	}

	// Closed or settled accounts still carrying a balance.
	if tl.Status == report.AccountClosed && tl.Balance.IsPositive() && !tl.IsCollection {
		add(CatClosedWithBalance, map[string]any{"balance": tl.Balance.String()})
	}
	if tl.Status == report.AccountSettled && tl.Balance.IsPositive() {
		add(CatSettledWithBalance, map[string]any{"balance": tl.Balance.String()})
	}

	// An open account cannot have a closed date.
	if tl.Status == report.AccountOpen && tl.DateClosed != nil {
		add(CatContradictoryStatus, map[string]any{
			"status":      string(tl.Status),
			"date_closed": tl.DateClosed.Format("2006-01-02"),
		})
	}

	// Future dates.
	for name, dt := range map[string]*time.Time{
		"date_opened":        tl.DateOpened,
		"date_last_activity": tl.DateLastActivity,
	} {
		if dt != nil && dt.After(now) {
			add(CatFutureDate, map[string]any{"field": name, "value": dt.Format("2006-01-02")})
		}
	}
	if tl.DateReported.After(now) {
		add(CatFutureDate, map[string]any{"field": "date_reported", "value": tl.DateReported.Format("2006-01-02")})
	}

	// Open accounts missing the opened date.
	if tl.Status == report.AccountOpen && tl.DateOpened == nil {
		add(CatMissingDate, map[string]any{"field": "date_opened"})
	}

	// Obsolete negatives: 7 years from last activity, 10 for bankruptcies.
	if tl.DateLastActivity != nil && isNegative(tl) {
		age := now.Sub(*tl.DateLastActivity)
		if isBankruptcy(tl.AccountType) {
			if age > bankruptcyAge {
				add(CatOutdatedBankruptcy, map[string]any{"date_last_activity": tl.DateLastActivity.Format("2006-01-02")})
			}
		} else if age > negativeItemAge {
			add(CatOutdatedNegative, map[string]any{"date_last_activity": tl.DateLastActivity.Format("2006-01-02")})
		}
	}

	// Paid collections that keep reporting.
	if tl.IsCollection && tl.Balance.IsZero() && tl.Status == report.AccountCollection {
		if tl.IsMedical {
			add(CatMedicalCollectionNCAP, map[string]any{"creditor": tl.CreditorName})
		} else {
			add(CatPaidCollection, map[string]any{"creditor": tl.CreditorName})
		}
	}

	// Negative marks on authorized-user accounts.
	if tl.IsAuthorizedUser && isNegative(tl) {
		add(CatAuthorizedUserNegative, map[string]any{"creditor": tl.CreditorName})
	}

	return findings
}

// CompareSnapshots applies the history rules between two snapshots of the
// same account: charge-off balances may not grow after charge-off, and dates
// may not slide forward (re-aging).
func (d *Detector) CompareSnapshots(prev, curr *report.TradelineAccount) []Finding {
	findings := []Finding{}

	if curr.IsChargeOff && prev.IsChargeOff && curr.Balance.GreaterThan(prev.Balance) {
		findings = append(findings, newTradelineFinding(curr, CatChargeOffBalanceGrowth, map[string]any{
			"previous_balance": prev.Balance.String(),
			"current_balance":  curr.Balance.String(),
		}))
	}

	if prev.DateLastActivity != nil && curr.DateLastActivity != nil &&
		curr.DateLastActivity.After(*prev.DateLastActivity) && isNegative(curr) {
		findings = append(findings, newTradelineFinding(curr, CatReAging, map[string]any{
			"previous_last_activity": prev.DateLastActivity.Format("2006-01-02"),
			"current_last_activity":  curr.DateLastActivity.Format("2006-01-02"),
		}))
	}

	return findings
}

// CompareReports matches the previous snapshot's accounts to the current
// ones by creditor and account number within the same bureau and applies the
// between-snapshot rules to each matched pair. Accounts that appear on only
// one side have no history to compare and are skipped.
func (d *Detector) CompareReports(prev, curr []report.TradelineAccount) []Finding {
	prevByKey := map[string]*report.TradelineAccount{}
	for i := range prev {
		tl := &prev[i]
		prevByKey[tradelineKey(tl)] = tl
	}

	findings := []Finding{}
	for i := range curr {
		tl := &curr[i]
		if p, ok := prevByKey[tradelineKey(tl)]; ok {
			findings = append(findings, d.CompareSnapshots(p, tl)...)
		}
	}
	return findings
}

func tradelineKey(tl *report.TradelineAccount) string {
	return fmt.Sprintf("%s|%s|%s", tl.Bureau, normalizeCreditor(tl.CreditorName), tl.AccountNumber)
}

func (d *Detector) detectDuplicates(tradelines []report.TradelineAccount) []Finding {
	findings := []Finding{}
	seen := map[string]*report.TradelineAccount{}
	for i := range tradelines {
		tl := &tradelines[i]
		key := tradelineKey(tl)
		if first, ok := seen[key]; ok {
			f := newTradelineFinding(tl, CatDuplicateAccount, map[string]any{
				"creditor":       tl.CreditorName,
				"account_number": tl.AccountNumber,
			})
			f.RelatedTradelineID = strPtr(first.ID)
			findings = append(findings, f)
			continue
		}
		seen[key] = tl
	}
	return findings
}

// detectCrossBureau flags the same account reported with conflicting values
// by different bureaus. The finding targets the bureau whose value is the
// outlier: for balances the highest one, otherwise the later snapshot.
func (d *Detector) detectCrossBureau(tradelines []report.TradelineAccount) []Finding {
	byAccount := map[string][]*report.TradelineAccount{}
	for i := range tradelines {
		tl := &tradelines[i]
		key := fmt.Sprintf("%s|%s", normalizeCreditor(tl.CreditorName), tl.AccountNumber)
		byAccount[key] = append(byAccount[key], tl)
	}

	findings := []Finding{}
	for _, group := range byAccount {
		if len(group) < 2 || !spansBureaus(group) {
			continue
		}

		if tl, other, field := firstMismatch(group); tl != nil {
			f := newTradelineFinding(tl, CatCrossBureauDiscrepancy, map[string]any{
				"field":         field,
				"other_bureau":  string(other.Bureau),
				"other_balance": other.Balance.String(),
			})
			f.RelatedTradelineID = strPtr(other.ID)
			findings = append(findings, f)
		}
	}
	return findings
}

// firstMismatch returns the outlier snapshot, the snapshot it conflicts
// with, and the field that differs.
func firstMismatch(group []*report.TradelineAccount) (*report.TradelineAccount, *report.TradelineAccount, string) {
	base := group[0]
	for _, other := range group[1:] {
		if other.Bureau == base.Bureau {
			continue
		}
		if !base.Balance.Equal(other.Balance) {
			if other.Balance.GreaterThan(base.Balance) {
				return other, base, "balance"
			}
			return base, other, "balance"
		}
		if base.Status != other.Status {
			if other.DateReported.After(base.DateReported) {
				return other, base, "status"
			}
			return base, other, "status"
		}
		if !equalDates(base.DateOpened, other.DateOpened) {
			if other.DateReported.After(base.DateReported) {
				return other, base, "date_opened"
			}
			return base, other, "date_opened"
		}
	}
	return nil, nil, ""
}

func newTradelineFinding(tl *report.TradelineAccount, cat Category, details map[string]any) Finding {
	info := Categories[cat]
	return Finding{
		ClientID:    tl.ClientID,
		ReportID:    tl.ReportID,
		TradelineID: strPtr(tl.ID),
		Bureau:      tl.Bureau,
		Category:    cat,
		Severity:    info.Severity,
		Details:     details,
		ReportDate:  tl.DateReported,
	}
}

func isNegative(tl *report.TradelineAccount) bool {
	return tl.IsCollection || tl.IsChargeOff ||
		tl.Late30Count > 0 || tl.Late60Count > 0 || tl.Late90Count > 0 ||
		tl.Status == report.AccountCollection || tl.Status == report.AccountChargeOff
}

func isRevolving(accountType string) bool {
	t := strings.ToLower(accountType)
	return strings.Contains(t, "revolving") || strings.Contains(t, "credit card")
}

func isBankruptcy(accountType string) bool {
	return strings.Contains(strings.ToLower(accountType), "bankruptcy")
}

func normalizeCreditor(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func spansBureaus(group []*report.TradelineAccount) bool {
	for _, tl := range group[1:] {
		if tl.Bureau != group[0].Bureau {
			return true
		}
	}
	return false
}

func equalDates(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func strPtr(s string) *string { return &s }
