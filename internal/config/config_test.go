package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Azure: config.AzureConfig{
			SubscriptionID:   "0000-1111",
			BudgetNameFilter: "devbudget",
			ResourceGroupTag: "ade-env",
			CreatedByTag:     "created-by",
			BudgetAmount:     "200",
			DefaultMail:      "platform@example.com",
			ActionGroupID:    "/subscriptions/0000-1111/actionGroups/ops",
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "@every 5m", cfg.Schedule.Spec)
	assert.True(t, cfg.Schedule.RunOnStartup)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.False(t, cfg.Journal.Enabled)
	assert.Contains(t, cfg.Journal.Path, "journal.db")
	assert.False(t, cfg.Webhook.Enabled)
	assert.False(t, cfg.Slack.NormalizeOwnerEmail)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte(`
azure:
  subscription_id: 0000-1111
  budget_name_filter: devbudget
  budget_amount: 250
alerts:
  threshold_percentage: 80
slack:
  portal_tenant: contoso.onmicrosoft.com
  normalize_owner_email: true
schedule:
  spec: "0 */10 * * * *"
  run_on_startup: false
journal:
  enabled: true
  path: /tmp/abg.db
logging:
  level: debug
`)
	err := os.WriteFile(cfgPath, data, 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "0000-1111", cfg.Azure.SubscriptionID)
	assert.Equal(t, "devbudget", cfg.Azure.BudgetNameFilter)
	assert.Equal(t, "250", cfg.Azure.BudgetAmount)
	assert.Equal(t, "80", cfg.Alerts.ThresholdPercentage)
	assert.Equal(t, "contoso.onmicrosoft.com", cfg.Slack.PortalTenant)
	assert.True(t, cfg.Slack.NormalizeOwnerEmail)
	assert.Equal(t, "0 */10 * * * *", cfg.Schedule.Spec)
	assert.False(t, cfg.Schedule.RunOnStartup)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/abg.db", cfg.Journal.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ABG_LOGGING_LEVEL", "error")
	t.Setenv("ABG_SERVER_LISTEN", ":7070")
	t.Setenv("ABG_AZURE_DEFAULT_MAIL", "ops@example.com")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, "ops@example.com", cfg.Azure.DefaultMail)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-legacy")
	t.Setenv("AZURE_BUDGET_NAME_FILTER", "devbudget")
	t.Setenv("AZURE_RESOURCE_GROUP_TAG", "ade-env")
	t.Setenv("AZURE_RESOURCE_GROUP_CREATED_BY_TAG", "created-by")
	t.Setenv("AZURE_BUDGET_AMOUNT", "$1,200.50")
	t.Setenv("AZURE_DEFAULT_MAIL", "platform@example.com")
	t.Setenv("AZURE_ACTION_GROUP_ID", "ag")
	t.Setenv("ALERT_THRESHOLD_PERCENTAGE", "90")
	t.Setenv("SLACK_TOKEN", "xoxb-test")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sub-legacy", cfg.Azure.SubscriptionID)
	assert.Equal(t, "created-by", cfg.Azure.CreatedByTag)
	assert.True(t, cfg.Azure.Amount.Equal(decimal.RequireFromString("1200.50")))
	assert.True(t, cfg.Alerts.Enabled)
	assert.True(t, cfg.Alerts.Threshold.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, "xoxb-test", cfg.Slack.Token)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	err := os.WriteFile(cfgPath, []byte("invalid: [yaml"), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	assert.Error(t, err)
}

func TestValidate_AlertsDisabledWithoutThreshold(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Alerts.Enabled)
	assert.True(t, cfg.Azure.Amount.Equal(decimal.NewFromInt(200)))
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Azure.SubscriptionID = ""
	cfg.Azure.DefaultMail = "  "

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissing))
	assert.Contains(t, err.Error(), "azure.subscription_id")
	assert.Contains(t, err.Error(), "azure.default_mail")
}

func TestValidate_AlertsRequireSlack(t *testing.T) {
	cfg := validConfig()
	cfg.Alerts.ThresholdPercentage = "80"

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "slack.token")
	assert.Contains(t, err.Error(), "slack.webhook_url")

	cfg.Slack.Token = "xoxb-test"
	cfg.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/X"
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Alerts.Enabled)
	assert.True(t, cfg.Alerts.Threshold.Equal(decimal.NewFromInt(80)))
}

func TestValidate_WebhookRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Webhook.Enabled = true

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "webhook.url")
}

func TestValidate_BadNumbers(t *testing.T) {
	cfg := validConfig()
	cfg.Azure.BudgetAmount = "lots"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Azure.BudgetAmount = "0"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Alerts.ThresholdPercentage = "eighty"
	cfg.Slack.Token = "t"
	cfg.Slack.WebhookURL = "u"
	assert.Error(t, cfg.Validate())

	for _, threshold := range []string{"0", "0%", "-5"} {
		cfg = validConfig()
		cfg.Alerts.ThresholdPercentage = threshold
		cfg.Slack.Token = "t"
		cfg.Slack.WebhookURL = "u"
		assert.Error(t, cfg.Validate(), threshold)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"200", "200"},
		{"$1,200.50", "1200.5"},
		{" 1 000 ", "1000"},
		{"99.99", "99.99"},
	}
	for _, tt := range tests {
		got, err := config.ParseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), tt.in)
	}

	_, err := config.ParseAmount("$")
	assert.Error(t, err)
}
