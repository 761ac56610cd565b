package config

import (
	"errors"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.MaxItemsPerRound != 5 {
		t.Errorf("expected default max items 5, got %d", cfg.MaxItemsPerRound)
	}
	if cfg.ResponseWindowDays != 30 {
		t.Errorf("expected default response window 30, got %d", cfg.ResponseWindowDays)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.HTTPAddr)
	}
}

func TestLoad_BadMaxItems(t *testing.T) {
	t.Setenv("CRP_MAX_ITEMS_PER_ROUND", "0")
	_, err := Load()
	if !errors.Is(err, ErrBadMaxItems) {
		t.Fatalf("expected ErrBadMaxItems, got %v", err)
	}
}

func TestLoad_BadResponseWindow(t *testing.T) {
	t.Setenv("CRP_RESPONSE_WINDOW_DAYS", "-3")
	_, err := Load()
	if !errors.Is(err, ErrBadResponseWindow) {
		t.Fatalf("expected ErrBadResponseWindow, got %v", err)
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := Config{MaxItemsPerRound: 5, ResponseWindowDays: 30}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
