package dispute

import (
	"fmt"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
)

// TemplateID names a letter template family understood by the rendering
// collaborator.
type TemplateID string

const (
	TmplBureauDispute        TemplateID = "bureau_dispute"
	TmplSection605B          TemplateID = "section_605b"
	TmplDebtValidation       TemplateID = "debt_validation"
	TmplFCRAViolation        TemplateID = "fcra_violation"
	TmplGoodwill             TemplateID = "goodwill"
	TmplMethodOfVerification TemplateID = "method_of_verification"
	TmplCFPBWarning          TemplateID = "cfpb_warning"
)

// initialTemplates maps every category to its round-1/2 template. The table
// must stay total over analyzer.Categories; ValidateTables enforces that at
// startup so a gap is a deploy-time failure, not a silent skip.
var initialTemplates = map[analyzer.Category]TemplateID{
	analyzer.CatIdentityTheft:          TmplSection605B,
	analyzer.CatNotMyAccount:           TmplSection605B,
	analyzer.CatMixedFile:              TmplBureauDispute,
	analyzer.CatOutdatedNegative:       TmplBureauDispute,
	analyzer.CatOutdatedInquiry:        TmplBureauDispute,
	analyzer.CatOutdatedBankruptcy:     TmplBureauDispute,
	analyzer.CatBalanceExceedsLimit:    TmplBureauDispute,
	analyzer.CatMissingCreditLimit:     TmplBureauDispute,
	analyzer.CatDuplicateAccount:       TmplBureauDispute,
	analyzer.CatImpossibleLatePattern:  TmplBureauDispute,
	analyzer.CatContradictoryStatus:    TmplBureauDispute,
	analyzer.CatPaidCollection:         TmplDebtValidation,
	analyzer.CatMedicalCollectionNCAP:  TmplDebtValidation,
	analyzer.CatTaxLienNCAP:            TmplBureauDispute,
	analyzer.CatChargeOffBalanceGrowth: TmplBureauDispute,
	analyzer.CatClosedWithBalance:      TmplBureauDispute,
	analyzer.CatFutureDate:             TmplBureauDispute,
	analyzer.CatMissingDate:            TmplBureauDispute,
	analyzer.CatReAging:                TmplFCRAViolation,
	analyzer.CatAuthorizedUserNegative: TmplGoodwill,
	analyzer.CatSettledWithBalance:     TmplBureauDispute,
	analyzer.CatUnauthorizedInquiry:    TmplFCRAViolation,
	analyzer.CatCrossBureauDiscrepancy: TmplBureauDispute,
}

// basisTable maps every category to the legal citation cited in the letter.
// Total over the enumeration, same as initialTemplates.
var basisTable = map[analyzer.Category]string{
	analyzer.CatIdentityTheft:          "FCRA §605B block request",
	analyzer.CatNotMyAccount:           "FCRA §605B block request",
	analyzer.CatMixedFile:              "FCRA §607(b) maximum possible accuracy",
	analyzer.CatOutdatedNegative:       "FCRA §611 reinvestigation request (§605(a)(1) obsolescence)",
	analyzer.CatOutdatedInquiry:        "FCRA §611 reinvestigation request (§605(a)(3) obsolescence)",
	analyzer.CatOutdatedBankruptcy:     "FCRA §611 reinvestigation request (§605(a)(1) obsolescence)",
	analyzer.CatBalanceExceedsLimit:    "FCRA §611(a)(1) reinvestigation request",
	analyzer.CatMissingCreditLimit:     "FCRA §609(a)(1) disclosure request",
	analyzer.CatDuplicateAccount:       "FCRA §611(a)(1) reinvestigation request",
	analyzer.CatImpossibleLatePattern:  "FCRA §623(a)(1) furnisher accuracy challenge",
	analyzer.CatContradictoryStatus:    "FCRA §623(a)(1) furnisher accuracy challenge",
	analyzer.CatPaidCollection:         "FDCPA §809 debt validation request",
	analyzer.CatMedicalCollectionNCAP:  "NCAP medical collection removal (FDCPA §809)",
	analyzer.CatTaxLienNCAP:            "NCAP public record standards (FCRA §611)",
	analyzer.CatChargeOffBalanceGrowth: "FCRA §623(a)(1) furnisher accuracy challenge",
	analyzer.CatClosedWithBalance:      "FCRA §623(a)(1) furnisher accuracy challenge",
	analyzer.CatFutureDate:             "FCRA §611(a)(1) reinvestigation request",
	analyzer.CatMissingDate:            "FCRA §609(a)(1) disclosure request",
	analyzer.CatReAging:                "FCRA §623(a)(5) date-of-delinquency violation",
	analyzer.CatAuthorizedUserNegative: "Goodwill deletion request",
	analyzer.CatSettledWithBalance:     "FCRA §623(a)(1) furnisher accuracy challenge",
	analyzer.CatUnauthorizedInquiry:    "FCRA §604(a)(3) impermissible purpose",
	analyzer.CatCrossBureauDiscrepancy: "FCRA §611(a)(1) reinvestigation request",
}

// SelectTemplate resolves (category, round number, escalation tier) to a
// template. Round 3 and beyond, or any escalation-tier round, uses the
// escalation family regardless of category.
func SelectTemplate(category analyzer.Category, roundNumber int, escalated bool) (TemplateID, error) {
	if !analyzer.ValidCategory(category) {
		return "", fmt.Errorf("dispute: unknown category %q", category)
	}
	if escalated || roundNumber >= 3 {
		if roundNumber >= 4 {
			return TmplCFPBWarning, nil
		}
		return TmplMethodOfVerification, nil
	}
	tmpl, ok := initialTemplates[category]
	if !ok {
		return "", fmt.Errorf("dispute: no template mapped for category %q", category)
	}
	return tmpl, nil
}

// BasisFor resolves the legal citation for a category.
func BasisFor(category analyzer.Category) (string, error) {
	basis, ok := basisTable[category]
	if !ok {
		return "", fmt.Errorf("dispute: no basis mapped for category %q", category)
	}
	return basis, nil
}

// ValidateTables confirms the template and basis tables are total over the
// category enumeration. Called at startup; a failure is a configuration
// defect and aborts boot.
func ValidateTables() error {
	for cat := range analyzer.Categories {
		if _, ok := initialTemplates[cat]; !ok {
			return fmt.Errorf("dispute: template table missing category %q", cat)
		}
		if _, ok := basisTable[cat]; !ok {
			return fmt.Errorf("dispute: basis table missing category %q", cat)
		}
	}
	return nil
}
