package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a subscription tier. Prices are monthly USD.
type Plan struct {
	ID                 string
	Name               string
	Slug               string
	Description        string
	PriceMonthly       decimal.Decimal
	MaxDisputes        int
	MaxReports         int
	IncludesLetters    bool
	IncludesMonitoring bool
	PrioritySupport    bool
	StripePriceID      *string
	CreatedAt          time.Time
}

// DefaultPlans returns the seed tiers created on first boot.
func DefaultPlans() []Plan {
	return []Plan{
		{
			Name:            "Basic",
			Slug:            "basic",
			Description:     "Essential credit repair features",
			PriceMonthly:    decimal.RequireFromString("79.99"),
			MaxDisputes:     5,
			MaxReports:      3,
			IncludesLetters: true,
		},
		{
			Name:               "Professional",
			Slug:               "professional",
			Description:        "Advanced credit repair with monitoring",
			PriceMonthly:       decimal.RequireFromString("149.99"),
			MaxDisputes:        15,
			MaxReports:         10,
			IncludesLetters:    true,
			IncludesMonitoring: true,
		},
		{
			Name:               "Premium",
			Slug:               "premium",
			Description:        "Complete credit repair solution",
			PriceMonthly:       decimal.RequireFromString("249.99"),
			MaxDisputes:        999,
			MaxReports:         999,
			IncludesLetters:    true,
			IncludesMonitoring: true,
			PrioritySupport:    true,
		},
	}
}

// SubscriptionStatus mirrors the processor's subscription states.
type SubscriptionStatus string

const (
	SubActive    SubscriptionStatus = "active"
	SubPastDue   SubscriptionStatus = "past_due"
	SubCancelled SubscriptionStatus = "cancelled"
	SubUnpaid    SubscriptionStatus = "unpaid"
)

// Subscription ties a user to a plan. One row per user; webhook events
// upsert it.
type Subscription struct {
	ID                   string
	UserID               string
	PlanSlug             string
	Status               SubscriptionStatus
	StripeSubscriptionID *string
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Payment records one settled or failed charge.
type Payment struct {
	ID             string
	UserID         string
	SubscriptionID *string
	Amount         decimal.Decimal
	Currency       string
	Status         string
	StripeEventID  string
	CreatedAt      time.Time
}
