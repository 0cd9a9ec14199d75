package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ErrMissing is returned by Validate when required settings are absent.
var ErrMissing = errors.New("missing required configuration")

// Config holds all Azure Budget Guardian configuration.
type Config struct {
	Azure    AzureConfig    `mapstructure:"azure"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AzureConfig defines the subscription being reconciled and the budgets created in it.
type AzureConfig struct {
	SubscriptionID   string `mapstructure:"subscription_id"`
	BudgetNameFilter string `mapstructure:"budget_name_filter"`
	ResourceGroupTag string `mapstructure:"resource_group_tag"`
	CreatedByTag     string `mapstructure:"created_by_tag"`
	BudgetAmount     string `mapstructure:"budget_amount"`
	DefaultMail      string `mapstructure:"default_mail"`
	ActionGroupID    string `mapstructure:"action_group_id"`

	// Amount is BudgetAmount parsed by Validate.
	Amount decimal.Decimal `mapstructure:"-"`
}

// AlertsConfig defines the chat alert threshold. An empty threshold disables alerts.
type AlertsConfig struct {
	ThresholdPercentage string `mapstructure:"threshold_percentage"`

	Threshold decimal.Decimal `mapstructure:"-"`
	Enabled   bool            `mapstructure:"-"`
}

// SlackConfig defines Slack API and incoming webhook settings.
type SlackConfig struct {
	Token               string `mapstructure:"token"`
	WebhookURL          string `mapstructure:"webhook_url"`
	APIURL              string `mapstructure:"api_url"`
	PortalTenant        string `mapstructure:"portal_tenant"`
	NormalizeOwnerEmail bool   `mapstructure:"normalize_owner_email"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// ScheduleConfig defines the recurring trigger.
type ScheduleConfig struct {
	Spec         string `mapstructure:"spec"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
}

// ServerConfig defines the health and metrics listener used in schedule mode.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// JournalConfig defines the optional run history database.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys to the environment names used by existing deployments.
var legacyEnv = map[string]string{
	"azure.subscription_id":       "AZURE_SUBSCRIPTION_ID",
	"azure.budget_name_filter":    "AZURE_BUDGET_NAME_FILTER",
	"azure.resource_group_tag":    "AZURE_RESOURCE_GROUP_TAG",
	"azure.created_by_tag":        "AZURE_RESOURCE_GROUP_CREATED_BY_TAG",
	"azure.budget_amount":         "AZURE_BUDGET_AMOUNT",
	"azure.default_mail":          "AZURE_DEFAULT_MAIL",
	"azure.action_group_id":       "AZURE_ACTION_GROUP_ID",
	"alerts.threshold_percentage": "ALERT_THRESHOLD_PERCENTAGE",
	"slack.token":                 "SLACK_TOKEN",
	"slack.webhook_url":           "SLACK_WEBHOOK_URL",
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".abg"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("azure.subscription_id", "")
	v.SetDefault("azure.budget_name_filter", "")
	v.SetDefault("azure.resource_group_tag", "")
	v.SetDefault("azure.created_by_tag", "")
	v.SetDefault("azure.budget_amount", "")
	v.SetDefault("azure.default_mail", "")
	v.SetDefault("azure.action_group_id", "")
	v.SetDefault("alerts.threshold_percentage", "")
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.webhook_url", "")
	v.SetDefault("slack.api_url", "")
	v.SetDefault("slack.portal_tenant", "")
	v.SetDefault("slack.normalize_owner_email", false)
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("schedule.spec", "@every 5m")
	v.SetDefault("schedule.run_on_startup", true)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", filepath.Join(home, ".abg", "journal.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("ABG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "ABG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks required settings and parses the numeric ones. Slack settings
// are only required when alerts are enabled.
func (c *Config) Validate() error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("azure.subscription_id", c.Azure.SubscriptionID)
	require("azure.budget_name_filter", c.Azure.BudgetNameFilter)
	require("azure.resource_group_tag", c.Azure.ResourceGroupTag)
	require("azure.created_by_tag", c.Azure.CreatedByTag)
	require("azure.budget_amount", c.Azure.BudgetAmount)
	require("azure.default_mail", c.Azure.DefaultMail)
	require("azure.action_group_id", c.Azure.ActionGroupID)

	c.Alerts.Enabled = strings.TrimSpace(c.Alerts.ThresholdPercentage) != ""
	if c.Alerts.Enabled {
		require("slack.token", c.Slack.Token)
		require("slack.webhook_url", c.Slack.WebhookURL)
	}
	if c.Webhook.Enabled {
		require("webhook.url", c.Webhook.URL)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}

	amount, err := ParseAmount(c.Azure.BudgetAmount)
	if err != nil {
		return fmt.Errorf("parse azure.budget_amount: %w", err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("azure.budget_amount must be positive, got %s", amount)
	}
	c.Azure.Amount = amount

	if c.Alerts.Enabled {
		threshold, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(c.Alerts.ThresholdPercentage, "%")))
		if err != nil {
			return fmt.Errorf("parse alerts.threshold_percentage: %w", err)
		}
		if !threshold.IsPositive() {
			return fmt.Errorf("alerts.threshold_percentage must be positive, got %s", threshold)
		}
		c.Alerts.Threshold = threshold
	}

	return nil
}

// ParseAmount parses a money string such as "1200", "$1,200.50" or "1 200".
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
