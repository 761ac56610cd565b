package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

var (
	// ErrBadMaxItems signals a max-items-per-round value below 1.
	ErrBadMaxItems = errors.New("config: max items per round must be at least 1")
	// ErrBadResponseWindow signals a non-positive response window.
	ErrBadResponseWindow = errors.New("config: response window days must be at least 1")
)

// Config carries every runtime knob the services need. Values come from
// environment variables (CRP_* prefix, DATABASE_URL kept bare for parity
// with deployment tooling) layered over defaults.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	HTTPAddr    string

	// MaxItemsPerRound caps how many dispute items a single round may carry.
	MaxItemsPerRound int
	// ResponseWindowDays is how long a bureau has to answer a sent round
	// before it escalates. Same value for all bureaus and rounds; the 30-day
	// default is provisional pending product clarification.
	ResponseWindowDays int

	OpenAIAPIKey string
}

// Load reads configuration from the environment with defaults applied.
// The returned config is already validated; a bad value here is a startup
// defect, never a per-request condition.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRP")
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("max_items_per_round", 5)
	v.SetDefault("response_window_days", 30)

	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("jwt_secret", "CRP_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")

	cfg := Config{
		DatabaseURL:        v.GetString("database_url"),
		JWTSecret:          v.GetString("jwt_secret"),
		HTTPAddr:           v.GetString("http_addr"),
		MaxItemsPerRound:   v.GetInt("max_items_per_round"),
		ResponseWindowDays: v.GetInt("response_window_days"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configuration defects before any request is served.
func (c Config) Validate() error {
	if c.MaxItemsPerRound < 1 {
		return fmt.Errorf("%w: got %d", ErrBadMaxItems, c.MaxItemsPerRound)
	}
	if c.ResponseWindowDays < 1 {
		return fmt.Errorf("%w: got %d", ErrBadResponseWindow, c.ResponseWindowDays)
	}
	return nil
}
