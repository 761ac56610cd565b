package client

import "time"

// Client is one consumer whose credit the business is repairing. Personally
// identifying fields are the minimum needed to address dispute letters.
type Client struct {
	ID          string
	OwnerUserID string
	FullName    string
	Email       string
	Phone       *string
	Address     string
	City        string
	State       string
	ZipCode     string
	SSNLastFour string
	DateOfBirth *time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filters narrows client listings.
type Filters struct {
	OwnerUserID string
	Status      string
	Search      string
	Page        int
	PageSize    int
}
