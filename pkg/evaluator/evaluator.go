// Package evaluator decides, for one snapshot of resource groups and their budgets,
// which groups need a budget created and which budgets are over the alert threshold.
package evaluator

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

// Options controls matching and threshold evaluation.
type Options struct {
	// NameFilter is matched case-insensitively as a substring of budget names.
	NameFilter string

	// Threshold is the consumption percentage at or above which a budget is reported.
	Threshold decimal.Decimal

	// ThresholdEnabled turns threshold evaluation on. When false Exceeding stays empty.
	ThresholdEnabled bool
}

// Evaluate computes the reconciliation decisions. Groups are processed in input
// order and budgets in provider order, so the result is deterministic for a
// given snapshot. A scope missing from listings is treated as having no budgets.
func Evaluate(groups []model.ResourceGroup, listings map[string]model.BudgetListing, opts Options) *model.Evaluation {
	eval := &model.Evaluation{}
	filter := strings.ToLower(opts.NameFilter)

	for _, rg := range groups {
		if !rg.Tagged || rg.ID == "" {
			continue
		}

		listing := listings[rg.ID]
		if listing.State() == model.ListingFailed {
			eval.Skipped = append(eval.Skipped, model.SkippedScope{Group: rg, Reason: listing.Err.Error()})
			continue
		}

		budget, ok := firstMatch(listing.Budgets, filter)
		if !ok {
			eval.ToCreate = append(eval.ToCreate, rg)
			continue
		}

		status := model.BudgetStatus{
			Budget:     budget,
			Group:      rg,
			Percentage: budget.ConsumptionPct(),
		}
		eval.Matched = append(eval.Matched, status)

		// A zero or negative amount has no meaningful consumption and never alerts.
		if opts.ThresholdEnabled && budget.Amount.IsPositive() && status.Percentage.GreaterThanOrEqual(opts.Threshold) {
			eval.Exceeding = append(eval.Exceeding, status)
		}
	}

	return eval
}

func firstMatch(budgets []model.Budget, lowerFilter string) (model.Budget, bool) {
	for _, b := range budgets {
		if strings.Contains(strings.ToLower(b.Name), lowerFilter) {
			return b, true
		}
	}
	return model.Budget{}, false
}
