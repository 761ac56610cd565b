package dispute

import (
	"testing"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
)

func TestValidateTables(t *testing.T) {
	if err := ValidateTables(); err != nil {
		t.Fatalf("expected total template tables, got %v", err)
	}
}

func TestSelectTemplate(t *testing.T) {
	cases := []struct {
		name      string
		category  analyzer.Category
		round     int
		escalated bool
		want      TemplateID
	}{
		{"identity theft round 1", analyzer.CatIdentityTheft, 1, false, TmplSection605B},
		{"collection round 1", analyzer.CatPaidCollection, 1, false, TmplDebtValidation},
		{"ordinary round 2 keeps initial", analyzer.CatBalanceExceedsLimit, 2, false, TmplBureauDispute},
		{"round 3 escalates", analyzer.CatBalanceExceedsLimit, 3, false, TmplMethodOfVerification},
		{"round 4 warns cfpb", analyzer.CatBalanceExceedsLimit, 4, false, TmplCFPBWarning},
		{"escalation tier overrides round number", analyzer.CatIdentityTheft, 2, true, TmplMethodOfVerification},
		{"goodwill category", analyzer.CatAuthorizedUserNegative, 1, false, TmplGoodwill},
		{"unauthorized inquiry", analyzer.CatUnauthorizedInquiry, 1, false, TmplFCRAViolation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectTemplate(tc.category, tc.round, tc.escalated)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSelectTemplate_UnknownCategory(t *testing.T) {
	if _, err := SelectTemplate(analyzer.Category("made_up"), 1, false); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestBasisFor_CoversEveryCategory(t *testing.T) {
	for cat := range analyzer.Categories {
		basis, err := BasisFor(cat)
		if err != nil {
			t.Fatalf("category %s: %v", cat, err)
		}
		if basis == "" {
			t.Errorf("category %s: empty basis", cat)
		}
	}
}
