package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: test-token\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, 30, cfg.Session.IdleTimeoutMinutes)
	assert.Equal(t, 5, cfg.Session.PreviewRows)
	assert.Equal(t, "name", cfg.CSV.NameColumn)
	assert.Equal(t, "email", cfg.CSV.EmailColumn)
	assert.Equal(t, "What is your LinkedIn profile?", cfg.CSV.LinkedInColumn)
	assert.False(t, cfg.Mailchimp.Enabled())
	assert.False(t, cfg.Pipedrive.Enabled())
}

func TestLoadEnvOverlay(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: from-file\n")
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("MAILCHIMP_API_KEY", "mc-key")
	t.Setenv("MAILCHIMP_LIST_ID", "list-1")
	t.Setenv("MAILCHIMP_SERVER_PREFIX", "us21")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.True(t, cfg.Mailchimp.Enabled())
}

func TestNormalizeMissingToken(t *testing.T) {
	cfg := &Config{}
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram token is required")
}

func TestNormalizeWebhookRequirements(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "t", RunMode: "webhook"},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	// All webhook problems should be reported in one pass.
	assert.Contains(t, err.Error(), "webhook.url")
	assert.Contains(t, err.Error(), "webhook.listen")
	assert.Contains(t, err.Error(), "webhook.port")
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "polling"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestConnectorEnablementPartialOptions(t *testing.T) {
	mc := MailchimpConfig{APIKey: "k", ListID: "l"}
	assert.False(t, mc.Enabled(), "missing server prefix must keep Mailchimp disabled")

	pd := PipedriveConfig{APIKey: "k"}
	assert.False(t, pd.Enabled(), "missing domain must keep Pipedrive disabled")

	pd.Domain = "example"
	assert.True(t, pd.Enabled())
}

func TestNormalizePipedriveLinkedInDefault(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		Pipedrive: PipedriveConfig{APIKey: "k", Domain: "d"},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "linkedin", cfg.Pipedrive.LinkedInField)
}
