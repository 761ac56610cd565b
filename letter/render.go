package letter

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/binhusmachado/creditrepair-pro/dispute"
)

// ItemView is one disputed item as it appears in a letter.
type ItemView struct {
	CreditorName  string
	AccountNumber string
	Reason        string
	Basis         string
}

// ClientView carries the consumer identification block. SSN is already
// reduced to its last four digits; the full number never reaches this
// package.
type ClientView struct {
	FullName    string
	Address     string
	City        string
	State       string
	ZipCode     string
	SSNLastFour string
	DateOfBirth string
}

// RenderData is the input to one letter render.
type RenderData struct {
	Date        string
	Bureau      Contact
	Client      ClientView
	Items       []ItemView
	RoundNumber int
}

const letterHeader = `{{.Date}}

{{.Bureau.Name}}
{{.Bureau.Address}}
{{.Bureau.CityStateZip}}
`

const consumerBlock = `CONSUMER INFORMATION:
Name: {{.Client.FullName}}
Address: {{.Client.Address}}
City, State ZIP: {{.Client.City}}, {{.Client.State}} {{.Client.ZipCode}}
SSN: XXX-XX-{{.Client.SSNLastFour}}
Date of Birth: {{.Client.DateOfBirth}}
`

const itemsBlock = `DISPUTED ITEM(S):
{{range $i, $item := .Items}}
Item {{inc $i}}:
- Creditor: {{$item.CreditorName}}
- Account #: {{$item.AccountNumber}}
- Reason: {{$item.Reason}}
- Legal basis: {{$item.Basis}}
{{end}}`

const signatureBlock = `Sincerely,

_____________________________
{{.Client.FullName}}
Date: {{.Date}}

---
SEND VIA CERTIFIED MAIL, RETURN RECEIPT REQUESTED
`

const bureauDisputeBody = letterHeader + `
Re: Formal Dispute of Inaccurate Credit Information

To Whom It May Concern:

I am writing pursuant to the Fair Credit Reporting Act (FCRA), 15 U.S.C. § 1681 et seq., to formally dispute the following inaccurate and/or incomplete information appearing in my credit file.

` + consumerBlock + `
` + itemsBlock + `
LEGAL BASIS:
Under 15 U.S.C. § 1681i(a)(1)(A), you are required to conduct a reasonable investigation of this dispute within thirty (30) days of receipt. Pursuant to 15 U.S.C. § 1681e(b), you must follow reasonable procedures to assure maximum possible accuracy.

REQUESTED ACTION:
I respectfully request that you:
1. Conduct an immediate investigation of the disputed item(s)
2. Delete or correct all inaccurate/incomplete information
3. Provide written confirmation of your actions
4. Notify all recipients of my credit report of any corrections

Please be advised that this dispute is submitted in good faith. I request that this letter and all related correspondence be retained in my file.

` + signatureBlock

const section605BBody = letterHeader + `
Re: Identity Theft Block Request - FCRA § 605B

To Whom It May Concern:

I am a victim of identity theft. The accounts referenced below were fraudulently opened in my name without my authorization.

` + consumerBlock + `
` + itemsBlock + `
LEGAL REQUIREMENT:
Under 15 U.S.C. § 1681c-2, you are required to block this adverse information from my credit report within four (4) business days of receiving appropriate identification and an identity theft report.

ATTACHMENTS:
- Copy of government-issued photo ID
- Copy of utility bill
- FTC Identity Theft Report
- Police Report

Please confirm the block within 5 business days.

` + signatureBlock

const debtValidationBody = letterHeader + `
Re: Debt Validation Request

To Whom It May Concern:

I am writing pursuant to the Fair Debt Collection Practices Act (FDCPA), 15 U.S.C. § 1692g, to request validation of the alleged debts referenced below.

` + consumerBlock + `
` + itemsBlock + `
VALIDATION REQUESTED:
Please provide the following pursuant to 15 U.S.C. § 1692g(b):
1. The amount of each alleged debt, including an itemized accounting
2. The name and address of the original creditor
3. Proof that you own the debt or are authorized to collect it
4. A copy of the original signed contract bearing my signature
5. Proof that the debt is within the statute of limitations

CEASE COLLECTION:
Until you provide the requested validation, please cease all collection activities pursuant to 15 U.S.C. § 1692g(b), including reporting the debt to credit bureaus.

` + signatureBlock

const fcraViolationBody = letterHeader + `
Re: Dispute of Information Furnished in Violation of the FCRA

To Whom It May Concern:

I am writing to dispute information in my credit file that is being reported in violation of the Fair Credit Reporting Act.

` + consumerBlock + `
` + itemsBlock + `
LEGAL OBLIGATION:
Under 15 U.S.C. § 1681s-2(a)(1)(A), furnishers are required to report accurate information, and 15 U.S.C. § 1681i(a)(1)(A) requires you to conduct a reasonable investigation of this dispute within thirty (30) days.

REQUESTED ACTION:
Please investigate, correct or delete the items above, and provide written confirmation of your actions within 30 days.

` + signatureBlock

const goodwillBody = `{{.Date}}

{{range $i, $item := .Items}}{{if eq $i 0}}{{$item.CreditorName}}
Customer Service Department
{{end}}{{end}}
Re: Goodwill Adjustment Request

To Whom It May Concern:

I am writing to request a goodwill adjustment regarding the accounts referenced below.

` + consumerBlock + `
` + itemsBlock + `
I have since brought the accounts current and maintained on-time payments. I take full responsibility for the oversight and have implemented safeguards to prevent future occurrences.

REQUEST:
I respectfully request that you remove the negative reporting from my credit file as a goodwill gesture.

Your consideration of this request would be deeply appreciated.

` + signatureBlock

const movBody = letterHeader + `
Re: Method of Verification Request - FCRA § 611(a)(7)
Round: {{.RoundNumber}}

To Whom It May Concern:

I previously disputed inaccurate information in my credit file. You responded by claiming the information was "verified."

Pursuant to 15 U.S.C. § 1681i(a)(7), I hereby request the method of verification used.

` + consumerBlock + `
` + itemsBlock + `
REQUESTED INFORMATION:
1. The name of the furnisher who verified the information
2. The address and telephone number of the furnisher
3. A copy of any documentation provided by the furnisher
4. A detailed description of your verification procedures

LEGAL REQUIREMENT:
Section 1681i(a)(7) requires you to provide this information within 15 days of receipt. Your failure to provide this information will constitute a violation of the FCRA.

` + signatureBlock

const cfpbWarningBody = letterHeader + `
Re: Final Notice Before CFPB Complaint
Round: {{.RoundNumber}}

To Whom It May Concern:

This is my repeated attempt to resolve inaccurate information in my credit report. Despite previous disputes sent via certified mail, you have failed to conduct a reasonable investigation, correct or delete inaccurate information, or respond within 30 days as required by law.

` + consumerBlock + `
` + itemsBlock + `
LEGAL VIOLATIONS:
Your failure to comply may constitute violations of:
- 15 U.S.C. § 1681i(a)(1)(A) - Failure to investigate
- 15 U.S.C. § 1681e(b) - Failure to ensure accuracy
- 15 U.S.C. § 1681s-2 - Furnisher violations

NOTICE OF INTENDED ACTION:
If you do not resolve this matter within 15 days, I will file complaints with the Consumer Financial Protection Bureau and the State Attorney General, and consider legal action for FCRA violations.

This is your final opportunity to comply voluntarily.

` + signatureBlock

var templateBodies = map[dispute.TemplateID]string{
	dispute.TmplBureauDispute:        bureauDisputeBody,
	dispute.TmplSection605B:          section605BBody,
	dispute.TmplDebtValidation:       debtValidationBody,
	dispute.TmplFCRAViolation:        fcraViolationBody,
	dispute.TmplGoodwill:             goodwillBody,
	dispute.TmplMethodOfVerification: movBody,
	dispute.TmplCFPBWarning:          cfpbWarningBody,
}

var templates = func() map[dispute.TemplateID]*template.Template {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	out := make(map[dispute.TemplateID]*template.Template, len(templateBodies))
	for id, body := range templateBodies {
		out[id] = template.Must(template.New(string(id)).Funcs(funcs).Parse(body))
	}
	return out
}()

// Render produces the letter body for a template. The date is formatted the
// way the letters are dated, "January 2, 2006".
func Render(id dispute.TemplateID, data RenderData) (string, error) {
	tmpl, ok := templates[id]
	if !ok {
		return "", fmt.Errorf("letter: no template body for %q", id)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("letter: render %s: %w", id, err)
	}
	return sb.String(), nil
}

// FormatDate renders a timestamp in the letter date style.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
