package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// HTTPConfig configures the REST API listener. Port 0 disables the API.
type HTTPConfig struct {
	Listen      string   `yaml:"listen" envconfig:"HTTP_LISTEN"`
	Port        int      `yaml:"port" envconfig:"HTTP_PORT"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"HTTP_CORS_ORIGINS"`
}

// SessionConfig controls review session lifecycle.
type SessionConfig struct {
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes" envconfig:"SESSION_IDLE_TIMEOUT_MINUTES"`
	// PreviewRows limits how many parsed contacts the upload response echoes back.
	PreviewRows int `yaml:"preview_rows" envconfig:"SESSION_PREVIEW_ROWS"`
}

// IdleTimeout returns the configured idle timeout as a duration.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}

// CSVConfig maps logical contact fields to physical CSV column names.
// Column name matching is exact and case-sensitive.
type CSVConfig struct {
	NameColumn      string `yaml:"name_column"`
	EmailColumn     string `yaml:"email_column"`
	LinkedInColumn  string `yaml:"linkedin_column"`
	FirstNameColumn string `yaml:"first_name_column"`
	LastNameColumn  string `yaml:"last_name_column"`
}

// MailchimpConfig enables the Mailchimp connector when fully populated.
type MailchimpConfig struct {
	APIKey       string `yaml:"api_key" envconfig:"MAILCHIMP_API_KEY"`
	ListID       string `yaml:"list_id" envconfig:"MAILCHIMP_LIST_ID"`
	ServerPrefix string `yaml:"server_prefix" envconfig:"MAILCHIMP_SERVER_PREFIX"`
}

// Enabled reports whether the full Mailchimp option set is present.
func (m MailchimpConfig) Enabled() bool {
	return m.APIKey != "" && m.ListID != "" && m.ServerPrefix != ""
}

// PipedriveConfig enables the Pipedrive connector when fully populated.
type PipedriveConfig struct {
	APIKey string `yaml:"api_key" envconfig:"PIPEDRIVE_API_KEY"`
	Domain string `yaml:"domain" envconfig:"PIPEDRIVE_DOMAIN"`
	// LinkedInField is the Pipedrive person field key carrying the LinkedIn URL.
	LinkedInField string `yaml:"linkedin_field" envconfig:"PIPEDRIVE_LINKEDIN_FIELD"`
}

// Enabled reports whether the full Pipedrive option set is present.
func (p PipedriveConfig) Enabled() bool {
	return p.APIKey != "" && p.Domain != ""
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	HTTP      HTTPConfig      `yaml:"http"`
	Session   SessionConfig   `yaml:"session"`
	CSV       CSVConfig       `yaml:"csv"`
	Mailchimp MailchimpConfig `yaml:"mailchimp"`
	Pipedrive PipedriveConfig `yaml:"pipedrive"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required configuration fields and adjusts defaults.
// Validation problems are aggregated so a broken config reports everything at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	var errs *multierror.Error

	if cfg.Telegram.Token == "" {
		errs = multierror.Append(errs, fmt.Errorf("telegram token is required"))
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			errs = multierror.Append(errs, fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'"))
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			errs = multierror.Append(errs, fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'"))
		}
		if cfg.Webhook.Port <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'"))
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			errs = multierror.Append(errs, fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode))
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v))
			continue
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if cfg.HTTP.Port < 0 {
		errs = multierror.Append(errs, fmt.Errorf("http.port must be >= 0"))
	}
	if cfg.HTTP.Port > 0 && strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = "0.0.0.0"
	}

	if cfg.Session.IdleTimeoutMinutes < 0 {
		errs = multierror.Append(errs, fmt.Errorf("session.idle_timeout_minutes must be >= 0"))
	}
	if cfg.Session.IdleTimeoutMinutes == 0 {
		cfg.Session.IdleTimeoutMinutes = 30
	}
	if cfg.Session.PreviewRows <= 0 {
		cfg.Session.PreviewRows = 5
	}

	applyCSVDefaults(&cfg.CSV)

	if cfg.Pipedrive.Enabled() && strings.TrimSpace(cfg.Pipedrive.LinkedInField) == "" {
		cfg.Pipedrive.LinkedInField = "linkedin"
	}

	return errs.ErrorOrNil()
}

// Column defaults follow the upload template the bot advertises in /start.
func applyCSVDefaults(csv *CSVConfig) {
	if csv.NameColumn == "" {
		csv.NameColumn = "name"
	}
	if csv.EmailColumn == "" {
		csv.EmailColumn = "email"
	}
	if csv.LinkedInColumn == "" {
		csv.LinkedInColumn = "What is your LinkedIn profile?"
	}
	if csv.FirstNameColumn == "" {
		csv.FirstNameColumn = "first_name"
	}
	if csv.LastNameColumn == "" {
		csv.LastNameColumn = "last_name"
	}
}
