package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrOwnerNotFound is returned by a Resolver when the owner has no chat account.
var ErrOwnerNotFound = errors.New("owner not found")

// Alert is one over-threshold budget, rendered for delivery.
type Alert struct {
	BudgetName     string          `json:"budget_name"`
	ResourceGroup  string          `json:"resource_group"`
	Scope          string          `json:"scope"`
	Owner          string          `json:"owner"`
	Amount         decimal.Decimal `json:"amount"`
	CurrentSpend   decimal.Decimal `json:"current_spend"`
	ConsumptionPct decimal.Decimal `json:"consumption_pct"`
	ThresholdPct   decimal.Decimal `json:"threshold_pct"`
	Text           string          `json:"text"`
}

// Resolver maps an owner e-mail to a chat address.
type Resolver interface {
	// Resolve returns ErrOwnerNotFound when the e-mail has no chat identity.
	Resolve(ctx context.Context, email string) (string, error)
}

// Sender delivers a message directly to a resolved address.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

// Broadcaster delivers alerts to a fixed channel that needs no address.
type Broadcaster interface {
	// Name returns the broadcaster identifier.
	Name() string

	// Broadcast delivers an alert.
	Broadcast(ctx context.Context, alert Alert) error
}

// NormalizeEmail strips a "+tag" suffix from the local part:
// "jane+dev@example.com" becomes "jane@example.com".
func NormalizeEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}
	if base, _, found := strings.Cut(local, "+"); found {
		return base + "@" + domain
	}
	return email
}
