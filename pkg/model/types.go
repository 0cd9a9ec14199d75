package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeGrain is the recurrence period a budget is tracked over.
type TimeGrain string

const (
	TimeGrainMonthly   TimeGrain = "Monthly"
	TimeGrainQuarterly TimeGrain = "Quarterly"
	TimeGrainAnnually  TimeGrain = "Annually"
)

// CategoryCost is the only budget category the guardian creates.
const CategoryCost = "Cost"

var hundred = decimal.NewFromInt(100)

// InventoryItem is a resource group as listed by the cloud provider, tags included.
type InventoryItem struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Location string            `json:"location"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// ResourceGroup is an inventory item after tag inspection.
type ResourceGroup struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
	Owner    string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Tagged   bool   `json:"tagged" yaml:"tagged"`
}

// NewResourceGroup inspects the item's tags. The group is Tagged when requiredTag
// is present (any value); Owner is the value of ownerTag when present.
func NewResourceGroup(item InventoryItem, requiredTag, ownerTag string) ResourceGroup {
	rg := ResourceGroup{
		ID:       item.ID,
		Name:     item.Name,
		Location: item.Location,
	}
	if _, ok := item.Tags[requiredTag]; ok {
		rg.Tagged = true
	}
	if ownerTag != "" {
		rg.Owner = item.Tags[ownerTag]
	}
	return rg
}

// Budget is a provider-tracked spending limit attached to a scope.
type Budget struct {
	Name         string           `json:"name" yaml:"name"`
	Amount       decimal.Decimal  `json:"amount" yaml:"amount"`
	CurrentSpend *decimal.Decimal `json:"current_spend,omitempty" yaml:"current_spend,omitempty"`
	TimeGrain    TimeGrain        `json:"time_grain" yaml:"time_grain"`
	Category     string           `json:"category" yaml:"category"`
	Scope        string           `json:"scope" yaml:"scope"`
}

// Spend returns the current spend, zero when the provider did not report one.
func (b Budget) Spend() decimal.Decimal {
	if b.CurrentSpend == nil {
		return decimal.Zero
	}
	return *b.CurrentSpend
}

// ConsumptionPct returns spend/amount*100. It is zero when the amount is not
// positive or the spend is unknown, and never negative.
func (b Budget) ConsumptionPct() decimal.Decimal {
	if !b.Amount.IsPositive() || b.CurrentSpend == nil {
		return decimal.Zero
	}
	pct := b.CurrentSpend.Div(b.Amount).Mul(hundred)
	if pct.IsNegative() {
		return decimal.Zero
	}
	return pct
}

// ListingState classifies the outcome of a per-scope budget fetch.
type ListingState string

const (
	ListingFound  ListingState = "found"
	ListingEmpty  ListingState = "empty"
	ListingFailed ListingState = "failed"
)

// BudgetListing is the result of listing budgets for one scope. A failed fetch
// carries Err; an empty slice with no error means the scope has no budgets.
type BudgetListing struct {
	Budgets []Budget
	Err     error
}

// State reports which of the three listing outcomes this is.
func (l BudgetListing) State() ListingState {
	switch {
	case l.Err != nil:
		return ListingFailed
	case len(l.Budgets) == 0:
		return ListingEmpty
	default:
		return ListingFound
	}
}

// BudgetStatus pairs an authoritative budget with its resource group.
type BudgetStatus struct {
	Budget     Budget          `json:"budget" yaml:"budget"`
	Group      ResourceGroup   `json:"resource_group" yaml:"resource_group"`
	Percentage decimal.Decimal `json:"consumption_pct" yaml:"consumption_pct"`
}

// SkippedScope is a resource group whose budget listing failed this run.
type SkippedScope struct {
	Group  ResourceGroup `json:"resource_group" yaml:"resource_group"`
	Reason string        `json:"reason" yaml:"reason"`
}

// Evaluation is the outcome of one reconciliation decision pass.
type Evaluation struct {
	Matched   []BudgetStatus  `json:"matched" yaml:"matched"`
	ToCreate  []ResourceGroup `json:"to_create" yaml:"to_create"`
	Exceeding []BudgetStatus  `json:"exceeding" yaml:"exceeding"`
	Skipped   []SkippedScope  `json:"skipped" yaml:"skipped"`
}

// NotificationOutcome records what happened when notifying an owner about one budget.
type NotificationOutcome struct {
	Budget        string `json:"budget"`
	Scope         string `json:"scope"`
	Owner         string `json:"owner"`
	Address       string `json:"address,omitempty"`
	DirectSent    bool   `json:"direct_sent"`
	BroadcastSent bool   `json:"broadcast_sent"`
	Error         string `json:"error,omitempty"`
}

// RunStatus is the terminal state of a reconciliation run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunSummary is the logged (and optionally journaled) result of one run.
type RunSummary struct {
	ID              string                `json:"id"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      time.Time             `json:"finished_at"`
	PastDue         bool                  `json:"past_due"`
	DryRun          bool                  `json:"dry_run"`
	Status          RunStatus             `json:"status"`
	Error           string                `json:"error,omitempty"`
	ResourceGroups  int                   `json:"resource_groups"`
	ExistingBudgets int                   `json:"existing_budgets"`
	CreatedBudgets  int                   `json:"created_budgets"`
	FailedCreations int                   `json:"failed_creations"`
	Exceeding       int                   `json:"exceeding"`
	SkippedScopes   int                   `json:"skipped_scopes"`
	Notifications   []NotificationOutcome `json:"notifications,omitempty"`
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
