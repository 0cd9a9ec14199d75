package evaluator_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/evaluator"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ptr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func group(name string) model.ResourceGroup {
	return model.ResourceGroup{
		ID:     "/subscriptions/sub/resourceGroups/" + name,
		Name:   name,
		Tagged: true,
	}
}

func opts() evaluator.Options {
	return evaluator.Options{
		NameFilter:       "devbudget",
		Threshold:        dec("80"),
		ThresholdEnabled: true,
	}
}

func TestEvaluate_MissingBudgetCreatesOne(t *testing.T) {
	rg := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "other-budget", Amount: dec("100")}}},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, opts())
	require.Len(t, eval.ToCreate, 1)
	assert.Equal(t, "rg-dev-01", eval.ToCreate[0].Name)
	assert.Empty(t, eval.Matched)
	assert.Empty(t, eval.Exceeding)
}

func TestEvaluate_NoListingTreatedAsEmpty(t *testing.T) {
	rg := group("rg-dev-01")
	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, nil, opts())
	require.Len(t, eval.ToCreate, 1)
	assert.Empty(t, eval.Skipped)
}

func TestEvaluate_ExceedingThreshold(t *testing.T) {
	rg := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget-01", Amount: dec("100"), CurrentSpend: ptr("85"), Scope: rg.ID}}},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, opts())
	assert.Empty(t, eval.ToCreate)
	require.Len(t, eval.Matched, 1)
	require.Len(t, eval.Exceeding, 1)
	assert.True(t, eval.Exceeding[0].Percentage.Equal(dec("85.0")))
	assert.Equal(t, "devbudget-01", eval.Exceeding[0].Budget.Name)
}

func TestEvaluate_ThresholdBoundaryIsInclusive(t *testing.T) {
	rg := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget", Amount: dec("200"), CurrentSpend: ptr("160")}}},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, opts())
	require.Len(t, eval.Exceeding, 1)
}

func TestEvaluate_UnderThreshold(t *testing.T) {
	rg := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget", Amount: dec("100"), CurrentSpend: ptr("79.99")}}},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, opts())
	assert.Len(t, eval.Matched, 1)
	assert.Empty(t, eval.Exceeding)
}

func TestEvaluate_ZeroAmountNeverExceeds(t *testing.T) {
	rg := group("rg-dev-02")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget-02", Amount: decimal.Zero, CurrentSpend: ptr("500")}}},
	}

	o := opts()
	o.Threshold = dec("0.01")
	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, o)
	require.Len(t, eval.Matched, 1)
	assert.True(t, eval.Matched[0].Percentage.IsZero())
	assert.Empty(t, eval.Exceeding)
}

func TestEvaluate_ZeroAmountAtZeroThreshold(t *testing.T) {
	rg := group("rg-dev-02")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget-02", Amount: decimal.Zero, CurrentSpend: ptr("5")}}},
	}

	o := opts()
	o.Threshold = decimal.Zero
	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, o)
	require.Len(t, eval.Matched, 1)
	assert.Empty(t, eval.Exceeding)
}

func TestEvaluate_NegativeAmountNeverExceeds(t *testing.T) {
	rg := group("rg-dev-03")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget-03", Amount: dec("-10"), CurrentSpend: ptr("5")}}},
	}

	o := opts()
	o.Threshold = decimal.Zero
	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, o)
	require.Len(t, eval.Matched, 1)
	assert.Empty(t, eval.Exceeding)
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	rg := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{
			{Name: "unrelated", Amount: dec("100"), CurrentSpend: ptr("99")},
			{Name: "DevBudget-A", Amount: dec("100"), CurrentSpend: ptr("10")},
			{Name: "devbudget-b", Amount: dec("100"), CurrentSpend: ptr("95")},
		}},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, opts())
	require.Len(t, eval.Matched, 1)
	assert.Equal(t, "DevBudget-A", eval.Matched[0].Budget.Name)
	assert.Empty(t, eval.Exceeding)
	assert.Empty(t, eval.ToCreate)
}

func TestEvaluate_UntaggedGroupsIgnored(t *testing.T) {
	untagged := group("rg-prod")
	untagged.Tagged = false
	listings := map[string]model.BudgetListing{
		untagged.ID: {Budgets: []model.Budget{{Name: "devbudget", Amount: dec("100"), CurrentSpend: ptr("100")}}},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{untagged}, listings, opts())
	assert.Empty(t, eval.Matched)
	assert.Empty(t, eval.ToCreate)
	assert.Empty(t, eval.Exceeding)
	assert.Empty(t, eval.Skipped)
}

func TestEvaluate_EmptyIDIgnored(t *testing.T) {
	rg := group("rg-dev-01")
	rg.ID = ""

	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, nil, opts())
	assert.Empty(t, eval.ToCreate)
}

func TestEvaluate_FetchFailureSkipsScope(t *testing.T) {
	failing := group("rg-broken")
	healthy := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		failing.ID: {Err: errors.New("forbidden")},
	}

	eval := evaluator.Evaluate([]model.ResourceGroup{failing, healthy}, listings, opts())
	require.Len(t, eval.Skipped, 1)
	assert.Equal(t, "rg-broken", eval.Skipped[0].Group.Name)
	assert.Equal(t, "forbidden", eval.Skipped[0].Reason)
	require.Len(t, eval.ToCreate, 1)
	assert.Equal(t, "rg-dev-01", eval.ToCreate[0].Name)
	assert.Empty(t, eval.Matched)
}

func TestEvaluate_ThresholdDisabled(t *testing.T) {
	rg := group("rg-dev-01")
	listings := map[string]model.BudgetListing{
		rg.ID: {Budgets: []model.Budget{{Name: "devbudget", Amount: dec("100"), CurrentSpend: ptr("150")}}},
	}

	o := opts()
	o.ThresholdEnabled = false
	eval := evaluator.Evaluate([]model.ResourceGroup{rg}, listings, o)
	assert.Len(t, eval.Matched, 1)
	assert.Empty(t, eval.Exceeding)
}

func TestEvaluate_OneCreationPerScope(t *testing.T) {
	groups := []model.ResourceGroup{group("rg-a"), group("rg-b"), group("rg-c")}
	listings := map[string]model.BudgetListing{
		groups[1].ID: {Budgets: []model.Budget{{Name: "devbudget", Amount: dec("10")}}},
	}

	eval := evaluator.Evaluate(groups, listings, opts())
	require.Len(t, eval.ToCreate, 2)
	assert.Equal(t, "rg-a", eval.ToCreate[0].Name)
	assert.Equal(t, "rg-c", eval.ToCreate[1].Name)
	require.Len(t, eval.Matched, 1)
	assert.Equal(t, "rg-b", eval.Matched[0].Group.Name)
}
