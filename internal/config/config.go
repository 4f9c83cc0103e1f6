package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/prospectkeeper/keeper/internal/freshness"
)

type Config struct {
	API struct {
		BaseURL              string `toml:"base_url"`
		TimeoutSeconds       int    `toml:"timeout_seconds"`
		VerifyTimeoutSeconds int    `toml:"verify_timeout_seconds"`
	} `toml:"api"`
	Scoring struct {
		FreshWithinDays         int `toml:"fresh_within_days"`
		IdleWithinDays          int `toml:"idle_within_days"`
		SameScrapeWindowMinutes int `toml:"same_scrape_window_minutes"`
		BaseFresh               int `toml:"base_fresh"`
		BaseIdle                int `toml:"base_idle"`
		BaseStale               int `toml:"base_stale"`
		BaseNever               int `toml:"base_never"`
		ActiveBonus             int `toml:"active_bonus"`
		ActiveCap               int `toml:"active_cap"`
		InactiveBonus           int `toml:"inactive_bonus"`
		InactiveCap             int `toml:"inactive_cap"`
		ReviewPenalty           int `toml:"review_penalty"`
		ReviewFloor             int `toml:"review_floor"`
	} `toml:"scoring"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

// userHomeDir is swapped out by tests.
var userHomeDir = os.UserHomeDir

func GetConfigPath() string {
	home, _ := userHomeDir()
	return filepath.Join(home, ".config", "keeper", "config.toml")
}

// Load returns the defaults overlaid with whatever the config file sets.
// A missing file is not an error.
func Load() (*Config, error) {
	path := GetConfigPath()
	var cfg Config

	cfg.API.BaseURL = "http://localhost:8000"
	cfg.API.TimeoutSeconds = 30
	cfg.API.VerifyTimeoutSeconds = 300
	cfg.Scoring.FreshWithinDays = 30
	cfg.Scoring.IdleWithinDays = 90
	cfg.Scoring.SameScrapeWindowMinutes = 5
	cfg.Scoring.BaseFresh = 92
	cfg.Scoring.BaseIdle = 68
	cfg.Scoring.BaseStale = 42
	cfg.Scoring.BaseNever = 15
	cfg.Scoring.ActiveBonus = 5
	cfg.Scoring.ActiveCap = 97
	cfg.Scoring.InactiveBonus = 4
	cfg.Scoring.InactiveCap = 95
	cfg.Scoring.ReviewPenalty = 8
	cfg.Scoring.ReviewFloor = 10
	cfg.Log.Level = "info"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return &cfg, err
}

func (c *Config) Save() error {
	path := GetConfigPath()
	os.MkdirAll(filepath.Dir(path), 0755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) VerifyTimeout() time.Duration {
	return time.Duration(c.API.VerifyTimeoutSeconds) * time.Second
}

// ScoringModel converts the [scoring] section into a freshness model.
func (c *Config) ScoringModel() freshness.Model {
	return freshness.Model{
		FreshWithin:      time.Duration(c.Scoring.FreshWithinDays) * 24 * time.Hour,
		IdleWithin:       time.Duration(c.Scoring.IdleWithinDays) * 24 * time.Hour,
		SameScrapeWindow: time.Duration(c.Scoring.SameScrapeWindowMinutes) * time.Minute,
		BaseFresh:        c.Scoring.BaseFresh,
		BaseIdle:         c.Scoring.BaseIdle,
		BaseStale:        c.Scoring.BaseStale,
		BaseNever:        c.Scoring.BaseNever,
		ActiveBonus:      c.Scoring.ActiveBonus,
		ActiveCap:        c.Scoring.ActiveCap,
		InactiveBonus:    c.Scoring.InactiveBonus,
		InactiveCap:      c.Scoring.InactiveCap,
		ReviewPenalty:    c.Scoring.ReviewPenalty,
		ReviewFloor:      c.Scoring.ReviewFloor,
	}
}
