package provider

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

// DefaultValidity is how long a created budget stays active when no end date is given.
const DefaultValidity = 3650 * 24 * time.Hour

// OperatorGreaterThan is the comparison used by every notification tier.
const OperatorGreaterThan = "GreaterThan"

// NotificationTier is a native provider alert attached to a budget.
type NotificationTier struct {
	Key           string          `json:"key"`
	Operator      string          `json:"operator"`
	Threshold     decimal.Decimal `json:"threshold"`
	ContactEmails []string        `json:"contact_emails"`
	ContactGroups []string        `json:"contact_groups"`
}

// BudgetRequest describes a budget to create.
type BudgetRequest struct {
	Scope         string             `json:"scope"`
	Name          string             `json:"name"`
	Amount        decimal.Decimal    `json:"amount"`
	TimeGrain     model.TimeGrain    `json:"time_grain"`
	Category      string             `json:"category"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	Notifications []NotificationTier `json:"notifications"`
}

// RequestOptions overrides the defaults applied by NewBudgetRequest.
type RequestOptions struct {
	TimeGrain     model.TimeGrain
	Category      string
	StartDate     time.Time
	EndDate       time.Time
	ActionGroupID string
}

var tiers = []struct {
	key       string
	threshold int64
}{
	{"Actual_GreaterThan_80_Percent", 80},
	{"Actual_GreaterThan_90_Percent", 90},
	{"Actual_100_Percent", 100},
}

// NewBudgetRequest builds a creation request with the standard 80/90/100% actual
// spend tiers. Each tier mails ownerEmail (when non-empty) and the action group.
// Without explicit dates the budget starts on the first day of now's UTC month
// and runs for DefaultValidity.
func NewBudgetRequest(scope, name string, amount decimal.Decimal, ownerEmail string, opts RequestOptions, now time.Time) BudgetRequest {
	req := BudgetRequest{
		Scope:     scope,
		Name:      name,
		Amount:    amount,
		TimeGrain: opts.TimeGrain,
		Category:  opts.Category,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
	}
	if req.TimeGrain == "" {
		req.TimeGrain = model.TimeGrainMonthly
	}
	if req.Category == "" {
		req.Category = model.CategoryCost
	}
	if req.StartDate.IsZero() {
		utc := now.UTC()
		req.StartDate = time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if req.EndDate.IsZero() {
		req.EndDate = req.StartDate.Add(DefaultValidity)
	}

	var emails []string
	if ownerEmail != "" {
		emails = []string{ownerEmail}
	}
	var groups []string
	if opts.ActionGroupID != "" {
		groups = []string{opts.ActionGroupID}
	}

	for _, tier := range tiers {
		req.Notifications = append(req.Notifications, NotificationTier{
			Key:           tier.key,
			Operator:      OperatorGreaterThan,
			Threshold:     decimal.NewFromInt(tier.threshold),
			ContactEmails: emails,
			ContactGroups: groups,
		})
	}

	return req
}
