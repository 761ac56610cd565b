package letter

import (
	"time"

	"github.com/binhusmachado/creditrepair-pro/dispute"
	"github.com/binhusmachado/creditrepair-pro/report"
)

// Status is the letter lifecycle. Letters are generated as drafts and
// marked sent when they go out via certified mail.
type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
)

// Letter is a rendered dispute letter bound to a round. The body is stored
// verbatim so the mailed text survives later template edits.
type Letter struct {
	ID         string
	ClientID   string
	RoundID    string
	Bureau     report.Bureau
	TemplateID dispute.TemplateID
	Body       string
	Status     Status
	CreatedAt  time.Time
	SentAt     *time.Time
}

// Contact is a bureau's dispute mailing address.
type Contact struct {
	Name         string
	Address      string
	CityStateZip string
	Phone        string
}

var bureauContacts = map[report.Bureau]Contact{
	report.BureauEquifax: {
		Name:         "Equifax Information Services LLC",
		Address:      "P.O. Box 740256",
		CityStateZip: "Atlanta, GA 30374-0256",
		Phone:        "1-800-685-1111",
	},
	report.BureauExperian: {
		Name:         "Experian",
		Address:      "P.O. Box 4500",
		CityStateZip: "Allen, TX 75013",
		Phone:        "1-888-397-3742",
	},
	report.BureauTransUnion: {
		Name:         "TransUnion LLC",
		Address:      "P.O. Box 2000",
		CityStateZip: "Chester, PA 19016",
		Phone:        "1-800-916-8800",
	},
}

// ContactFor returns the mailing contact for a bureau.
func ContactFor(bureau report.Bureau) (Contact, bool) {
	c, ok := bureauContacts[bureau]
	return c, ok
}
