package analyzer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/binhusmachado/creditrepair-pro/report"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testDetector() *Detector {
	return NewDetector().WithClock(func() time.Time { return testNow })
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func baseTradeline() report.TradelineAccount {
	return report.TradelineAccount{
		ID:           "tl-1",
		ReportID:     "rep-1",
		ClientID:     "client-1",
		Bureau:       report.BureauEquifax,
		CreditorName: "Capital Bank",
		AccountNumber: "1234",
		AccountType:  "credit card",
		Status:       report.AccountOpen,
		Balance:      decimal.NewFromInt(500),
		CreditLimit:  decimal.NewFromInt(1000),
		DateOpened:   datePtr(2020, time.January, 15),
		DateReported: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
}

func categories(findings []Finding) map[Category]int {
	out := map[Category]int{}
	for _, f := range findings {
		out[f.Category]++
	}
	return out
}

func TestAnalyze_EmptyInput(t *testing.T) {
	findings := testDetector().Analyze(nil)
	if len(findings) != 0 {
		t.Fatalf("expected zero findings for empty input, got %d", len(findings))
	}
}

func TestAnalyze_CleanAccount(t *testing.T) {
	tl := baseTradeline()
	findings := testDetector().Analyze([]report.TradelineAccount{tl})
	if len(findings) != 0 {
		t.Fatalf("expected no findings for a clean account, got %v", categories(findings))
	}
}

func TestAnalyze_BalanceExceedsLimit(t *testing.T) {
	tl := baseTradeline()
	tl.Balance = decimal.NewFromInt(1500)

	findings := testDetector().Analyze([]report.TradelineAccount{tl})
	cats := categories(findings)
	if cats[CatBalanceExceedsLimit] != 1 {
		t.Fatalf("expected balance_exceeds_limit finding, got %v", cats)
	}
	if findings[0].Severity != SeverityHigh {
		t.Errorf("expected high severity, got %s", findings[0].Severity)
	}
	if findings[0].TradelineID == nil || *findings[0].TradelineID != "tl-1" {
		t.Errorf("finding not tied to tradeline: %+v", findings[0])
	}
}

func TestAnalyze_MissingCreditLimit(t *testing.T) {
	tl := baseTradeline()
	tl.Balance = decimal.Zero
	tl.CreditLimit = decimal.Zero

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatMissingCreditLimit] != 1 {
		t.Fatalf("expected missing_credit_limit, got %v", cats)
	}
}

func TestAnalyze_ImpossibleLatePattern(t *testing.T) {
	tl := baseTradeline()
	tl.Late90Count = 2

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatImpossibleLatePattern] != 1 {
		t.Fatalf("expected impossible_late_pattern, got %v", cats)
	}
}

func TestAnalyze_ClosedWithBalance(t *testing.T) {
	tl := baseTradeline()
	tl.Status = report.AccountClosed
	tl.DateClosed = datePtr(2024, time.March, 1)

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatClosedWithBalance] != 1 {
		t.Fatalf("expected closed_with_balance, got %v", cats)
	}
}

func TestAnalyze_ContradictoryStatus(t *testing.T) {
	tl := baseTradeline()
	tl.DateClosed = datePtr(2024, time.March, 1)

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatContradictoryStatus] != 1 {
		t.Fatalf("expected contradictory_status, got %v", cats)
	}
}

func TestAnalyze_FutureDate(t *testing.T) {
	tl := baseTradeline()
	tl.DateOpened = datePtr(2026, time.January, 1)

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatFutureDate] != 1 {
		t.Fatalf("expected future_date, got %v", cats)
	}
}

func TestAnalyze_OutdatedNegative(t *testing.T) {
	tl := baseTradeline()
	tl.Status = report.AccountCollection
	tl.IsCollection = true
	tl.Balance = decimal.NewFromInt(200)
	tl.CreditLimit = decimal.Zero
	tl.AccountType = "collection"
	tl.DateLastActivity = datePtr(2016, time.February, 1)

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatOutdatedNegative] != 1 {
		t.Fatalf("expected outdated_negative, got %v", cats)
	}
}

func TestAnalyze_OutdatedBankruptcyUsesTenYears(t *testing.T) {
	tl := baseTradeline()
	tl.AccountType = "bankruptcy chapter 7"
	tl.Status = report.AccountClosed
	tl.Balance = decimal.Zero
	tl.CreditLimit = decimal.Zero
	tl.IsChargeOff = true
	tl.DateClosed = datePtr(2017, time.March, 1)

	// 8 years old: past the 7-year negative window but inside the 10-year
	// bankruptcy window, so nothing fires.
	tl.DateLastActivity = datePtr(2017, time.March, 1)
	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatOutdatedBankruptcy] != 0 || cats[CatOutdatedNegative] != 0 {
		t.Fatalf("expected no obsolete finding at 8 years, got %v", cats)
	}

	tl.DateLastActivity = datePtr(2014, time.March, 1)
	cats = categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatOutdatedBankruptcy] != 1 {
		t.Fatalf("expected outdated_bankruptcy at 11 years, got %v", cats)
	}
}

func TestAnalyze_PaidCollectionAndMedical(t *testing.T) {
	tl := baseTradeline()
	tl.Status = report.AccountCollection
	tl.IsCollection = true
	tl.Balance = decimal.Zero
	tl.CreditLimit = decimal.Zero
	tl.AccountType = "collection"
	tl.DateLastActivity = datePtr(2023, time.June, 1)

	cats := categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatPaidCollection] != 1 {
		t.Fatalf("expected paid_collection, got %v", cats)
	}

	tl.IsMedical = true
	cats = categories(testDetector().Analyze([]report.TradelineAccount{tl}))
	if cats[CatMedicalCollectionNCAP] != 1 || cats[CatPaidCollection] != 0 {
		t.Fatalf("expected medical_collection_ncap only, got %v", cats)
	}
}

func TestAnalyze_DuplicateAccount(t *testing.T) {
	a := baseTradeline()
	b := baseTradeline()
	b.ID = "tl-2"

	findings := testDetector().Analyze([]report.TradelineAccount{a, b})
	cats := categories(findings)
	if cats[CatDuplicateAccount] != 1 {
		t.Fatalf("expected one duplicate_account, got %v", cats)
	}
	for _, f := range findings {
		if f.Category == CatDuplicateAccount {
			if f.RelatedTradelineID == nil || *f.RelatedTradelineID != "tl-1" {
				t.Fatalf("duplicate finding must reference first snapshot, got %+v", f)
			}
		}
	}
}

func TestAnalyze_CrossBureauDiscrepancyTargetsOutlier(t *testing.T) {
	a := baseTradeline()
	b := baseTradeline()
	b.ID = "tl-2"
	b.Bureau = report.BureauExperian
	b.Balance = decimal.NewFromInt(900)

	findings := testDetector().Analyze([]report.TradelineAccount{a, b})
	var found *Finding
	for i := range findings {
		if findings[i].Category == CatCrossBureauDiscrepancy {
			found = &findings[i]
		}
	}
	if found == nil {
		t.Fatalf("expected cross_bureau_discrepancy, got %v", categories(findings))
	}
	// The higher balance is the outlier.
	if found.Bureau != report.BureauExperian {
		t.Errorf("expected finding against experian, got %s", found.Bureau)
	}
	if found.Details["field"] != "balance" {
		t.Errorf("expected balance mismatch, got %v", found.Details)
	}
}

func TestAnalyzeInquiries_Outdated(t *testing.T) {
	inquiries := []report.Inquiry{
		{ClientID: "client-1", ReportID: "rep-1", Bureau: report.BureauTransUnion,
			SubscriberName: "Auto Lender", InquiryDate: time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{ClientID: "client-1", ReportID: "rep-1", Bureau: report.BureauTransUnion,
			SubscriberName: "Card Issuer", InquiryDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	findings := testDetector().AnalyzeInquiries(inquiries)
	if len(findings) != 1 {
		t.Fatalf("expected one outdated inquiry, got %d", len(findings))
	}
	if findings[0].Category != CatOutdatedInquiry {
		t.Fatalf("expected outdated_inquiry, got %s", findings[0].Category)
	}
}

func TestCompareSnapshots_BalanceGrowthAndReAging(t *testing.T) {
	prev := baseTradeline()
	prev.IsChargeOff = true
	prev.Status = report.AccountChargeOff
	prev.Balance = decimal.NewFromInt(1000)
	prev.CreditLimit = decimal.Zero
	prev.DateLastActivity = datePtr(2023, time.January, 1)

	curr := prev
	curr.ID = "tl-2"
	curr.Balance = decimal.NewFromInt(1200)
	curr.DateLastActivity = datePtr(2024, time.January, 1)

	findings := testDetector().CompareSnapshots(&prev, &curr)
	cats := categories(findings)
	if cats[CatChargeOffBalanceGrowth] != 1 {
		t.Errorf("expected charge_off_balance_growth, got %v", cats)
	}
	if cats[CatReAging] != 1 {
		t.Errorf("expected re_aging, got %v", cats)
	}
}

func TestCategoriesTableIsInternallyConsistent(t *testing.T) {
	for cat, info := range Categories {
		if info.Severity.Rank() > 3 {
			t.Errorf("category %s has unknown severity %q", cat, info.Severity)
		}
		if info.Priority < 1 {
			t.Errorf("category %s has invalid priority %d", cat, info.Priority)
		}
		if info.FCRASection == "" {
			t.Errorf("category %s missing legal section", cat)
		}
	}
}
