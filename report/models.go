package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bureau identifies one of the three US credit bureaus.
type Bureau string

const (
	BureauEquifax    Bureau = "equifax"
	BureauExperian   Bureau = "experian"
	BureauTransUnion Bureau = "transunion"
)

// AllBureaus returns the fixed bureau set in canonical order.
func AllBureaus() []Bureau {
	return []Bureau{BureauEquifax, BureauExperian, BureauTransUnion}
}

// ValidBureau reports whether b is one of the three fixed values.
func ValidBureau(b Bureau) bool {
	switch b {
	case BureauEquifax, BureauExperian, BureauTransUnion:
		return true
	default:
		return false
	}
}

// AccountStatus is the reported standing of a tradeline.
type AccountStatus string

const (
	AccountOpen       AccountStatus = "open"
	AccountClosed     AccountStatus = "closed"
	AccountCollection AccountStatus = "collection"
	AccountChargeOff  AccountStatus = "charge_off"
	AccountSettled    AccountStatus = "settled"
)

// CreditReport is one uploaded report for one client. The raw document and
// its OCR/PDF extraction live with the ingestion collaborator; only the
// normalized result is stored here.
type CreditReport struct {
	ID         string
	ClientID   string
	Bureau     Bureau
	Source     string
	ReportDate time.Time
	UploadedAt time.Time
}

// TradelineAccount is an immutable snapshot of one account as reported by
// one bureau on one credit report. Re-uploads create new snapshots; history
// per client is the sequence of snapshots over time.
type TradelineAccount struct {
	ID       string
	ReportID string
	ClientID string
	Bureau   Bureau

	CreditorName  string
	AccountNumber string
	AccountType   string
	Status        AccountStatus

	Balance     decimal.Decimal
	CreditLimit decimal.Decimal
	PastDue     decimal.Decimal

	// PaymentHistory holds per-period status codes, most recent first
	// (OK, 30, 60, 90, 120, CO).
	PaymentHistory []string
	Late30Count    int
	Late60Count    int
	Late90Count    int

	DateOpened       *time.Time
	DateClosed       *time.Time
	DateLastActivity *time.Time
	DateReported     time.Time

	IsCollection     bool
	IsChargeOff      bool
	IsMedical        bool
	IsAuthorizedUser bool

	CreatedAt time.Time
}

// Inquiry is one hard pull recorded on a credit report.
type Inquiry struct {
	ID             string
	ReportID       string
	ClientID       string
	Bureau         Bureau
	SubscriberName string
	InquiryDate    time.Time
	Purpose        string
	CreatedAt      time.Time
}
