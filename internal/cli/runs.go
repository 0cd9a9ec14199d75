package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs from the journal",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	runsCmd.Flags().String("id", "", "Show one run with its notifications")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("run journal is disabled (set journal.enabled)")
	}

	journal, err := initJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	if id, _ := cmd.Flags().GetString("id"); id != "" {
		run, err := journal.GetRun(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Run:        %s\n", run.ID)
		fmt.Printf("Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration:   %s\n", run.Duration())
		fmt.Printf("Status:     %s\n", run.Status)
		if run.Error != "" {
			fmt.Printf("Error:      %s\n", run.Error)
		}

		if len(run.Notifications) > 0 {
			fmt.Printf("\nNotifications:\n")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  BUDGET\tOWNER\tDIRECT\tBROADCAST\tERROR\n")
			for _, n := range run.Notifications {
				fmt.Fprintf(w, "  %s\t%s\t%t\t%t\t%s\n", n.Budget, n.Owner, n.DirectSent, n.BroadcastSent, orDash(n.Error))
			}
			w.Flush()
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := journal.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tSTARTED\tSTATUS\tGROUPS\tEXISTING\tCREATED\tFAILED\tOVER\tSKIPPED\n")
	for _, r := range runs {
		status := string(r.Status)
		if r.DryRun {
			status += " (dry)"
		}
		if r.PastDue {
			status += " (late)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), status,
			r.ResourceGroups, r.ExistingBudgets, r.CreatedBudgets, r.FailedCreations, r.Exceeding, r.SkippedScopes)
	}
	return w.Flush()
}
