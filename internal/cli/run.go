package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass",
	Long: `Create missing budgets for tagged resource groups and notify owners of budgets
over the alert threshold, once, then exit.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Evaluate and log without creating budgets or sending messages")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	logger := newLogger(cfg)

	journal, err := initJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	r, err := initReconciler(cfg, logger, dryRun, journal)
	if err != nil {
		return err
	}

	summary, err := r.Run(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	fmt.Printf("Resource groups:   %d\n", summary.ResourceGroups)
	fmt.Printf("Existing budgets:  %d\n", summary.ExistingBudgets)
	fmt.Printf("Created budgets:   %d\n", summary.CreatedBudgets)
	if summary.FailedCreations > 0 {
		fmt.Printf("Failed creations:  %d\n", summary.FailedCreations)
	}
	if summary.SkippedScopes > 0 {
		fmt.Printf("Skipped scopes:    %d\n", summary.SkippedScopes)
	}
	if cfg.Alerts.Enabled {
		fmt.Printf("Over %s%%:          %d\n", cfg.Alerts.Threshold.String(), summary.Exceeding)
	}
	return nil
}
