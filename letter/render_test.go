package letter

import (
	"strings"
	"testing"
	"time"

	"github.com/binhusmachado/creditrepair-pro/dispute"
	"github.com/binhusmachado/creditrepair-pro/report"
)

func testRenderData() RenderData {
	contact, _ := ContactFor(report.BureauExperian)
	return RenderData{
		Date:   FormatDate(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		Bureau: contact,
		Client: ClientView{
			FullName:    "Jordan Rivera",
			Address:     "12 Oak St",
			City:        "Austin",
			State:       "TX",
			ZipCode:     "78701",
			SSNLastFour: "1234",
			DateOfBirth: "04/15/1990",
		},
		Items: []ItemView{
			{CreditorName: "Capital Bank", AccountNumber: "XXXX5678", Reason: "Outdated negative item", Basis: "FCRA §611 reinvestigation request (§605(a)(1) obsolescence)"},
			{CreditorName: "Metro Collections", AccountNumber: "XXXX9012", Reason: "Paid collection still reporting", Basis: "FDCPA §809 debt validation request"},
		},
		RoundNumber: 1,
	}
}

func TestRender_CoversEveryTemplate(t *testing.T) {
	data := testRenderData()
	for _, id := range []dispute.TemplateID{
		dispute.TmplBureauDispute,
		dispute.TmplSection605B,
		dispute.TmplDebtValidation,
		dispute.TmplFCRAViolation,
		dispute.TmplGoodwill,
		dispute.TmplMethodOfVerification,
		dispute.TmplCFPBWarning,
	} {
		body, err := Render(id, data)
		if err != nil {
			t.Fatalf("template %s: %v", id, err)
		}
		if !strings.Contains(body, "Jordan Rivera") {
			t.Errorf("template %s: missing consumer name", id)
		}
		if !strings.Contains(body, "CERTIFIED MAIL") {
			t.Errorf("template %s: missing mailing instruction", id)
		}
	}
}

func TestRender_BureauDisputeContent(t *testing.T) {
	body, err := Render(dispute.TmplBureauDispute, testRenderData())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	for _, want := range []string{
		"Experian",
		"P.O. Box 4500",
		"XXX-XX-1234",
		"Item 1:",
		"Item 2:",
		"Capital Bank",
		"Metro Collections",
		"15 U.S.C. § 1681i(a)(1)(A)",
		"June 1, 2025",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
}

func TestRender_MOVIncludesRoundNumber(t *testing.T) {
	data := testRenderData()
	data.RoundNumber = 3
	body, err := Render(dispute.TmplMethodOfVerification, data)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.Contains(body, "Round: 3") {
		t.Error("expected round number in letter")
	}
	if !strings.Contains(body, "1681i(a)(7)") {
		t.Error("expected method of verification citation")
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, err := Render(dispute.TemplateID("nonexistent"), testRenderData()); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestContactFor(t *testing.T) {
	for _, bureau := range report.AllBureaus() {
		contact, ok := ContactFor(bureau)
		if !ok {
			t.Fatalf("expected contact for %s", bureau)
		}
		if contact.Name == "" || contact.Address == "" || contact.CityStateZip == "" {
			t.Errorf("incomplete contact for %s: %+v", bureau, contact)
		}
	}
	if _, ok := ContactFor(report.Bureau("innovis")); ok {
		t.Error("expected no contact for unknown bureau")
	}
}

func TestMaskAccountNumber(t *testing.T) {
	if got := maskAccountNumber("1234567890"); got != "XXXXXX7890" {
		t.Errorf("expected XXXXXX7890, got %s", got)
	}
	if got := maskAccountNumber("123"); got != "123" {
		t.Errorf("expected short numbers untouched, got %s", got)
	}
}
