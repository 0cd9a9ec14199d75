package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/internal/config"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/notify"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/provider/azure"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/reconciler"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "abg",
	Short: "Azure Budget Guardian - budgets for every tagged resource group",
	Long: `Azure Budget Guardian makes sure every tagged Azure resource group has a cost budget.
It creates missing budgets with 80/90/100% native alert tiers and messages the
resource group owner on Slack once consumption crosses the alert threshold.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.abg/config.yaml)")
}

// loadConfig loads the configuration without checking required settings.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// loadValidConfig loads the configuration and fails on missing required settings.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler).With("subscription", cfg.Azure.SubscriptionID)
}

// initJournal opens the run journal, or returns nil when it is disabled.
func initJournal(cfg *config.Config) (storage.Journal, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	j, err := storage.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

// initBroadcasters creates the address-less alert channels from config.
func initBroadcasters(cfg *config.Config) []notify.Broadcaster {
	var broadcasters []notify.Broadcaster

	if cfg.Slack.WebhookURL != "" {
		broadcasters = append(broadcasters, notify.NewSlackWebhook(cfg.Slack.WebhookURL))
	}

	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		broadcasters = append(broadcasters, notify.NewWebhookBroadcaster(
			cfg.Webhook.URL,
			cfg.Webhook.Secret,
		))
	}

	return broadcasters
}

// reconcilerConfig maps validated settings onto the reconciler.
func reconcilerConfig(cfg *config.Config, dryRun bool) reconciler.Config {
	return reconciler.Config{
		SubscriptionID:      cfg.Azure.SubscriptionID,
		NameFilter:          cfg.Azure.BudgetNameFilter,
		GroupTag:            cfg.Azure.ResourceGroupTag,
		OwnerTag:            cfg.Azure.CreatedByTag,
		BudgetAmount:        cfg.Azure.Amount,
		DefaultOwner:        cfg.Azure.DefaultMail,
		Threshold:           cfg.Alerts.Threshold,
		AlertsEnabled:       cfg.Alerts.Enabled,
		ActionGroupID:       cfg.Azure.ActionGroupID,
		PortalTenant:        cfg.Slack.PortalTenant,
		NormalizeOwnerEmail: cfg.Slack.NormalizeOwnerEmail,
		DryRun:              dryRun,
	}
}

// initReconciler creates a fully wired reconciler. journal may be nil.
func initReconciler(cfg *config.Config, logger *slog.Logger, dryRun bool, journal storage.Journal, opts ...reconciler.Option) (*reconciler.Reconciler, error) {
	client, err := azure.NewDefault(cfg.Azure.SubscriptionID)
	if err != nil {
		return nil, err
	}

	if journal != nil {
		opts = append(opts, reconciler.WithJournal(journal))
	}

	if cfg.Alerts.Enabled {
		slackClient := notify.NewSlackClient(cfg.Slack.Token, notify.SlackOptions{APIURL: cfg.Slack.APIURL})
		opts = append(opts,
			reconciler.WithNotifier(slackClient, slackClient),
			reconciler.WithBroadcasters(initBroadcasters(cfg)...),
		)
	}

	return reconciler.New(reconcilerConfig(cfg, dryRun), client, logger, opts...), nil
}
