package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "REVIEW_SENTINEL_CONFIG"
	sourceURLEnv     = "SOURCE_URL"
	ratingFilterEnv  = "RATING_FILTER"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	smtpHostEnv      = "SMTP_HOST"
	smtpPortEnv      = "SMTP_PORT"
	smtpUsernameEnv  = "SMTP_USERNAME"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	alertFromEnv     = "ALERT_FROM"
	alertToEnv       = "ALERT_TO"
	databasePathEnv  = "DATABASE_PATH"
	proxyServerEnv   = "PROXY_SERVER"
	proxyUsernameEnv = "PROXY_USERNAME"
	proxyPasswordEnv = "PROXY_PASSWORD"
	runIntervalEnv   = "RUN_INTERVAL_HOURS"
	logLevelEnv      = "LOG_LEVEL"
)

// Config holds every setting the pipeline needs. It is built once at process
// start and passed into constructors; nothing reads the environment later.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Database   DatabaseConfig   `yaml:"database"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Mail       MailConfig       `yaml:"mail"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Worker     WorkerConfig     `yaml:"worker"`
	Logging    LoggingConfig    `yaml:"logging"`
	Selectors  SelectorConfig   `yaml:"selectors"`
	Retry      RetryConfig      `yaml:"retry"`
}

// SourceConfig identifies the profile page and the ratings worth acting on.
type SourceConfig struct {
	URL          string `yaml:"url"`
	RatingFilter []int  `yaml:"ratingFilter"`
}

// Tracks reports whether a star rating is in the configured filter.
func (s SourceConfig) Tracks(rating int) bool {
	for _, r := range s.RatingFilter {
		if r == rating {
			return true
		}
	}
	return false
}

// DatabaseConfig locates the history store file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ClassifierConfig defines the reasoning-service contract.
type ClassifierConfig struct {
	APIKey          string         `yaml:"apiKey"`
	Model           string         `yaml:"model"`
	BaseURL         string         `yaml:"baseUrl"`
	Categories      []string       `yaml:"categories"`
	DefaultCategory string         `yaml:"defaultCategory"`
	RatingPolicy    map[int]string `yaml:"ratingPolicy"`
}

// RatingCategory resolves the category for a rating-only review.
func (c ClassifierConfig) RatingCategory(rating int) string {
	if cat, ok := c.RatingPolicy[rating]; ok {
		return cat
	}
	return c.DefaultCategory
}

// MailConfig wires the SMTP alert transport.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// ProxyConfig describes the optional residential proxy transport.
type ProxyConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WorkerConfig selects single-shot (0) or interval worker mode.
type WorkerConfig struct {
	RunIntervalHours int `yaml:"runIntervalHours"`
}

// Interval returns the worker period, or zero for single-shot mode.
func (w WorkerConfig) Interval() time.Duration {
	if w.RunIntervalHours <= 0 {
		return 0
	}
	return time.Duration(w.RunIntervalHours) * time.Hour
}

// LoggingConfig controls slog setup.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SelectorConfig carries the externally supplied structural selectors. Each
// field is an ordered fallback list; the first selector that yields content
// wins. Updating these when the source changes its markup requires no code
// change.
type SelectorConfig struct {
	Container    []string `yaml:"container"`
	Author       []string `yaml:"author"`
	Rating       []string `yaml:"rating"`
	Text         []string `yaml:"text"`
	Posted       []string `yaml:"posted"`
	NativeIDAttr string   `yaml:"nativeIdAttr"`
}

// RetryConfig tunes the shared retry policy.
type RetryConfig struct {
	MaxAttempts      int `yaml:"maxAttempts"`
	BaseDelaySeconds int `yaml:"baseDelaySeconds"`
}

// Load builds the configuration: defaults, then the optional YAML file named
// by REVIEW_SENTINEL_CONFIG, then environment overrides. A .env file in the
// working directory is honored before the environment is read.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over file and defaults. An
// unparseable value is a configuration error, not a silent fallback.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(sourceURLEnv); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv(ratingFilterEnv); v != "" {
		filter, err := ParseRatingFilter(v)
		if err != nil {
			return err
		}
		c.Source.RatingFilter = filter
	}
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Classifier.Model = v
	}
	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Mail.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", smtpPortEnv, v, err)
		}
		c.Mail.Port = port
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv(alertFromEnv); v != "" {
		c.Mail.From = v
	}
	if v := os.Getenv(alertToEnv); v != "" {
		c.Mail.To = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(proxyServerEnv); v != "" {
		c.Proxy.Server = v
	}
	if v := os.Getenv(proxyUsernameEnv); v != "" {
		c.Proxy.Username = v
	}
	if v := os.Getenv(proxyPasswordEnv); v != "" {
		c.Proxy.Password = v
	}
	if v := os.Getenv(runIntervalEnv); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", runIntervalEnv, v, err)
		}
		c.Worker.RunIntervalHours = hours
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c Config) validate() error {
	var missing []string
	if c.Source.URL == "" {
		missing = append(missing, sourceURLEnv)
	}
	if c.Classifier.APIKey == "" {
		missing = append(missing, openAIAPIKeyEnv)
	}
	if c.Mail.Username == "" {
		missing = append(missing, smtpUsernameEnv)
	}
	if c.Mail.Password == "" {
		missing = append(missing, smtpPasswordEnv)
	}
	if c.Mail.To == "" {
		missing = append(missing, alertToEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if len(c.Source.RatingFilter) == 0 {
		return fmt.Errorf("config: rating filter is empty")
	}
	for _, r := range c.Source.RatingFilter {
		if r < 1 || r > 5 {
			return fmt.Errorf("config: rating %d outside 1-5", r)
		}
	}
	return nil
}

// ParseRatingFilter parses a comma-separated rating list like "1,2,3".
func ParseRatingFilter(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	filter := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rating, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("config: invalid rating %q: %w", part, err)
		}
		filter = append(filter, rating)
	}
	if len(filter) == 0 {
		return nil, fmt.Errorf("config: empty rating filter %q", raw)
	}
	return filter, nil
}

func mergeConfig(base, override Config) Config {
	if override.Source.URL != "" {
		base.Source.URL = override.Source.URL
	}
	if len(override.Source.RatingFilter) > 0 {
		base.Source.RatingFilter = override.Source.RatingFilter
	}
	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}
	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}
	if override.Classifier.Model != "" {
		base.Classifier.Model = override.Classifier.Model
	}
	if override.Classifier.BaseURL != "" {
		base.Classifier.BaseURL = override.Classifier.BaseURL
	}
	if len(override.Classifier.Categories) > 0 {
		base.Classifier.Categories = override.Classifier.Categories
	}
	if override.Classifier.DefaultCategory != "" {
		base.Classifier.DefaultCategory = override.Classifier.DefaultCategory
	}
	if len(override.Classifier.RatingPolicy) > 0 {
		base.Classifier.RatingPolicy = override.Classifier.RatingPolicy
	}
	if override.Mail.Host != "" {
		base.Mail.Host = override.Mail.Host
	}
	if override.Mail.Port != 0 {
		base.Mail.Port = override.Mail.Port
	}
	if override.Mail.Username != "" {
		base.Mail.Username = override.Mail.Username
	}
	if override.Mail.Password != "" {
		base.Mail.Password = override.Mail.Password
	}
	if override.Mail.From != "" {
		base.Mail.From = override.Mail.From
	}
	if override.Mail.To != "" {
		base.Mail.To = override.Mail.To
	}
	if override.Proxy.Server != "" {
		base.Proxy = override.Proxy
	}
	if override.Worker.RunIntervalHours != 0 {
		base.Worker.RunIntervalHours = override.Worker.RunIntervalHours
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.JSON {
		base.Logging.JSON = true
	}
	if len(override.Selectors.Container) > 0 {
		base.Selectors.Container = override.Selectors.Container
	}
	if len(override.Selectors.Author) > 0 {
		base.Selectors.Author = override.Selectors.Author
	}
	if len(override.Selectors.Rating) > 0 {
		base.Selectors.Rating = override.Selectors.Rating
	}
	if len(override.Selectors.Text) > 0 {
		base.Selectors.Text = override.Selectors.Text
	}
	if len(override.Selectors.Posted) > 0 {
		base.Selectors.Posted = override.Selectors.Posted
	}
	if override.Selectors.NativeIDAttr != "" {
		base.Selectors.NativeIDAttr = override.Selectors.NativeIDAttr
	}
	if override.Retry.MaxAttempts != 0 {
		base.Retry.MaxAttempts = override.Retry.MaxAttempts
	}
	if override.Retry.BaseDelaySeconds != 0 {
		base.Retry.BaseDelaySeconds = override.Retry.BaseDelaySeconds
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Source: SourceConfig{
			RatingFilter: []int{1, 2, 3},
		},
		Database: DatabaseConfig{Path: "./data/reviews.db"},
		Classifier: ClassifierConfig{
			Model: "gpt-4",
			Categories: []string{
				"Off-topic",
				"Spam",
				"Conflict of interest",
				"Profanity",
				"Bullying or harassment",
				"Discrimination or hate speech",
				"Personal information",
				"Illegal content",
			},
			DefaultCategory: "Spam",
			RatingPolicy: map[int]string{
				1: "Spam",
				2: "Spam",
				3: "Spam",
			},
		},
		Mail: MailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Worker:  WorkerConfig{RunIntervalHours: 0},
		Logging: LoggingConfig{Level: "info"},
		Selectors: SelectorConfig{
			Container: []string{"div.GHT2ce"},
			Author:    []string{"button.al6Kxe div.d4r55"},
			Rating: []string{
				"span.kvMYJc[aria-label]",
				"span[role=\"img\"][aria-label]",
				"span[aria-label*=\"star\"]",
			},
			Text:         []string{"span.wiI7pd"},
			Posted:       []string{"span.rsqaWe"},
			NativeIDAttr: "data-review-id",
		},
		Retry: RetryConfig{MaxAttempts: 3, BaseDelaySeconds: 5},
	}
}
