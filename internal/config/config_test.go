package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(sourceURLEnv, "https://maps.example.com/place/Crown+Motors")
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(smtpUsernameEnv, "alerts@example.com")
	t.Setenv(smtpPasswordEnv, "app-password")
	t.Setenv(alertToEnv, "owner@example.com")
}

func TestLoadDefaultsWithEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Source.URL != "https://maps.example.com/place/Crown+Motors" {
		t.Fatalf("unexpected source url: %s", cfg.Source.URL)
	}
	if !cfg.Source.Tracks(1) || !cfg.Source.Tracks(3) || cfg.Source.Tracks(4) {
		t.Fatalf("unexpected default rating filter: %v", cfg.Source.RatingFilter)
	}
	if cfg.Database.Path != "./data/reviews.db" {
		t.Fatalf("unexpected database path: %s", cfg.Database.Path)
	}
	if len(cfg.Selectors.Container) == 0 || len(cfg.Selectors.Rating) < 2 {
		t.Fatal("default selectors missing")
	}
	if cfg.Classifier.RatingCategory(1) != "Spam" {
		t.Fatalf("unexpected rating policy: %s", cfg.Classifier.RatingCategory(1))
	}
}

func TestLoadRequiresSettings(t *testing.T) {
	t.Setenv(sourceURLEnv, "")
	t.Setenv(openAIAPIKeyEnv, "")
	t.Setenv(smtpUsernameEnv, "")
	t.Setenv(smtpPasswordEnv, "")
	t.Setenv(alertToEnv, "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required settings")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
source:
  url: https://maps.example.com/place/From+File
  ratingFilter: [1]
database:
  path: /var/lib/sentinel/reviews.db
selectors:
  container: ["div[data-review-card]"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(ratingFilterEnv, "1,2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Env wins over file for the URL and filter; file wins over defaults.
	if cfg.Source.URL != "https://maps.example.com/place/Crown+Motors" {
		t.Fatalf("env override lost: %s", cfg.Source.URL)
	}
	if len(cfg.Source.RatingFilter) != 2 || cfg.Source.RatingFilter[1] != 2 {
		t.Fatalf("unexpected rating filter: %v", cfg.Source.RatingFilter)
	}
	if cfg.Database.Path != "/var/lib/sentinel/reviews.db" {
		t.Fatalf("file override lost: %s", cfg.Database.Path)
	}
	if cfg.Selectors.Container[0] != "div[data-review-card]" {
		t.Fatalf("selector override lost: %v", cfg.Selectors.Container)
	}
}

func TestLoadRejectsUnparseableEnv(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv(ratingFilterEnv, "one,two")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric rating filter")
	}
	t.Setenv(ratingFilterEnv, "")

	t.Setenv(smtpPortEnv, "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric smtp port")
	}
	t.Setenv(smtpPortEnv, "")

	t.Setenv(runIntervalEnv, "daily")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric run interval")
	}
}

func TestParseRatingFilter(t *testing.T) {
	t.Parallel()

	filter, err := ParseRatingFilter(" 1, 2 ,3 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(filter) != 3 || filter[0] != 1 || filter[2] != 3 {
		t.Fatalf("unexpected filter: %v", filter)
	}

	if _, err := ParseRatingFilter("1,x"); err == nil {
		t.Fatal("expected error for non-numeric rating")
	}
	if _, err := ParseRatingFilter(" , "); err == nil {
		t.Fatal("expected error for empty filter")
	}
}
