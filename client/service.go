package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service exposes business-level client-file operations.
type Service struct {
	repo        Repository
	idGenerator func() string
}

// CreateParams enumerates the fields required to open a client file.
type CreateParams struct {
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
}

// ListResult bundles one page of clients with the unpaged total.
type ListResult struct {
	Items []Client
	Total int
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Client, error) {
	if params.OwnerUserID == "" {
		return Client{}, fmt.Errorf("client: missing owner user id")
	}
	if params.FullName == "" || params.Email == "" {
		return Client{}, fmt.Errorf("client: full name and email are required")
	}
	if params.SSNLastFour != "" && len(params.SSNLastFour) != 4 {
		return Client{}, fmt.Errorf("client: ssn_last_four must be 4 digits")
	}

	c := Client{
		ID:          s.idGenerator(),
		OwnerUserID: params.OwnerUserID,
		FullName:    params.FullName,
		Email:       params.Email,
		Phone:       params.Phone,
		Address:     params.Address,
		City:        params.City,
		State:       params.State,
		ZipCode:     params.ZipCode,
		SSNLastFour: params.SSNLastFour,
		DateOfBirth: params.DateOfBirth,
		Status:      "active",
	}

	return s.repo.Create(ctx, c)
}

func (s *Service) GetByID(ctx context.Context, id string) (Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}
