package analyzer

import "fmt"

// Severity orders findings for dispute prioritization.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort weight of a severity, lower is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Category is one kind of detectable credit-report error.
type Category string

const (
	CatOutdatedNegative       Category = "outdated_negative"
	CatOutdatedInquiry        Category = "outdated_inquiry"
	CatOutdatedBankruptcy     Category = "outdated_bankruptcy"
	CatBalanceExceedsLimit    Category = "balance_exceeds_limit"
	CatMissingCreditLimit     Category = "missing_credit_limit"
	CatDuplicateAccount       Category = "duplicate_account"
	CatImpossibleLatePattern  Category = "impossible_late_pattern"
	CatContradictoryStatus    Category = "contradictory_status"
	CatPaidCollection         Category = "paid_collection"
	CatMedicalCollectionNCAP  Category = "medical_collection_ncap"
	CatTaxLienNCAP            Category = "tax_lien_ncap"
	CatChargeOffBalanceGrowth Category = "charge_off_balance_growth"
	CatClosedWithBalance      Category = "closed_with_balance"
	CatFutureDate             Category = "future_date"
	CatMissingDate            Category = "missing_date"
	CatReAging                Category = "re_aging"
	CatAuthorizedUserNegative Category = "authorized_user_negative"
	CatSettledWithBalance     Category = "settled_with_balance"
	CatUnauthorizedInquiry    Category = "unauthorized_inquiry"
	CatCrossBureauDiscrepancy Category = "cross_bureau_discrepancy"
	CatNotMyAccount           Category = "not_my_account"
	CatIdentityTheft          Category = "identity_theft"
	CatMixedFile              Category = "mixed_file"
)

// CategoryInfo is the static rule-table entry for a category.
type CategoryInfo struct {
	Name            string
	Severity        Severity
	FCRASection     string
	EstimatedImpact int
	// Priority breaks severity ties during strategy ordering; lower wins.
	Priority int
}

// Categories is the full enumeration. The letter-selector and basis tables
// are validated against this map at startup, so adding a category here
// without extending those tables fails fast.
var Categories = map[Category]CategoryInfo{
	CatIdentityTheft:          {Name: "Identity Theft / Fraud", Severity: SeverityCritical, FCRASection: "605B", EstimatedImpact: 50, Priority: 1},
	CatMixedFile:              {Name: "Mixed Credit File", Severity: SeverityHigh, FCRASection: "607(b)", EstimatedImpact: 30, Priority: 1},
	CatNotMyAccount:           {Name: "Account Not Mine", Severity: SeverityHigh, FCRASection: "605B", EstimatedImpact: 20, Priority: 1},
	CatOutdatedBankruptcy:     {Name: "Outdated Bankruptcy (10+ Years)", Severity: SeverityHigh, FCRASection: "605(a)(1)", EstimatedImpact: 50, Priority: 2},
	CatOutdatedNegative:       {Name: "Outdated Negative (7+ Years)", Severity: SeverityHigh, FCRASection: "605(a)(1)", EstimatedImpact: 15, Priority: 2},
	CatReAging:                {Name: "Account Re-Aging", Severity: SeverityHigh, FCRASection: "623(a)(5)", EstimatedImpact: 15, Priority: 2},
	CatImpossibleLatePattern:  {Name: "Impossible Late Payment Pattern", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 20, Priority: 3},
	CatContradictoryStatus:    {Name: "Contradictory Account Status", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 15, Priority: 3},
	CatDuplicateAccount:       {Name: "Duplicate Account", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 15, Priority: 3},
	CatChargeOffBalanceGrowth: {Name: "Charge-Off Balance Increasing", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 15, Priority: 3},
	CatClosedWithBalance:      {Name: "Closed Account with Balance", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 15, Priority: 3},
	CatTaxLienNCAP:            {Name: "Tax Lien (NCAP Eligible)", Severity: SeverityHigh, FCRASection: "NCAP 2018", EstimatedImpact: 25, Priority: 3},
	CatBalanceExceedsLimit:    {Name: "Balance Exceeds Credit Limit", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 10, Priority: 4},
	CatFutureDate:             {Name: "Future Date Listed", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 10, Priority: 4},
	CatAuthorizedUserNegative: {Name: "Authorized User Account Negative", Severity: SeverityHigh, FCRASection: "623(a)(1)", EstimatedImpact: 15, Priority: 4},
	CatCrossBureauDiscrepancy: {Name: "Cross-Bureau Discrepancy", Severity: SeverityMedium, FCRASection: "623(a)(1)", EstimatedImpact: 10, Priority: 2},
	CatPaidCollection:         {Name: "Paid Collection Still Reporting", Severity: SeverityMedium, FCRASection: "623(a)(1)", EstimatedImpact: 10, Priority: 3},
	CatMedicalCollectionNCAP:  {Name: "Medical Collection (NCAP Eligible)", Severity: SeverityMedium, FCRASection: "NCAP 2022", EstimatedImpact: 15, Priority: 3},
	CatSettledWithBalance:     {Name: "Settled Account with Balance", Severity: SeverityMedium, FCRASection: "623(a)(1)", EstimatedImpact: 10, Priority: 4},
	CatOutdatedInquiry:        {Name: "Outdated Hard Inquiry (2+ Years)", Severity: SeverityMedium, FCRASection: "605(a)(3)", EstimatedImpact: 5, Priority: 5},
	CatUnauthorizedInquiry:    {Name: "Unauthorized Hard Inquiry", Severity: SeverityMedium, FCRASection: "604(a)(3)", EstimatedImpact: 5, Priority: 5},
	CatMissingCreditLimit:     {Name: "Missing Credit Limit", Severity: SeverityLow, FCRASection: "609(a)(1)", EstimatedImpact: 5, Priority: 6},
	CatMissingDate:            {Name: "Missing Critical Date", Severity: SeverityLow, FCRASection: "609(a)(1)", EstimatedImpact: 5, Priority: 6},
}

// Info returns the rule-table entry for a category.
func Info(c Category) (CategoryInfo, error) {
	info, ok := Categories[c]
	if !ok {
		return CategoryInfo{}, fmt.Errorf("analyzer: unknown category %q", c)
	}
	return info, nil
}

// ValidCategory reports whether c is part of the enumeration.
func ValidCategory(c Category) bool {
	_, ok := Categories[c]
	return ok
}
