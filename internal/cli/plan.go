package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a run would do",
	Long:  `Fetch resource groups and budgets and print the reconciliation decisions without acting on them.`,
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringP("output", "o", "table", "Output format (table, yaml)")
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadValidConfig()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "table" && output != "yaml" {
		return fmt.Errorf("unknown output format %q", output)
	}

	r, err := initReconciler(cfg, newLogger(cfg), true, nil)
	if err != nil {
		return err
	}

	eval, err := r.Plan(cmd.Context())
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	if output == "yaml" {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(eval)
	}
	printPlan(os.Stdout, eval)
	return nil
}

func printPlan(out io.Writer, eval *model.Evaluation) {
	fmt.Fprintf(out, "Budgets to create: %d\n", len(eval.ToCreate))
	if len(eval.ToCreate) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  RESOURCE GROUP\tLOCATION\tOWNER\n")
		for _, rg := range eval.ToCreate {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", rg.Name, rg.Location, orDash(rg.Owner))
		}
		w.Flush()
	}

	fmt.Fprintf(out, "\nExisting budgets: %d\n", len(eval.Matched))
	if len(eval.Matched) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  BUDGET\tRESOURCE GROUP\tSPEND\tAMOUNT\tUSED\n")
		for _, m := range eval.Matched {
			fmt.Fprintf(w, "  %s\t%s\t$%s\t$%s\t%s%%\n",
				m.Budget.Name, m.Group.Name,
				m.Budget.Spend().StringFixed(2), m.Budget.Amount.StringFixed(2), m.Percentage.StringFixed(1))
		}
		w.Flush()
	}

	if len(eval.Exceeding) > 0 {
		fmt.Fprintf(out, "\nOver threshold: %d\n", len(eval.Exceeding))
		for _, e := range eval.Exceeding {
			fmt.Fprintf(out, "  %s (%s) %s%% owner=%s\n",
				e.Budget.Name, e.Group.Name, e.Percentage.StringFixed(1), orDash(e.Group.Owner))
		}
	}

	if len(eval.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped scopes: %d\n", len(eval.Skipped))
		for _, s := range eval.Skipped {
			fmt.Fprintf(out, "  %s: %s\n", s.Group.Name, s.Reason)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
