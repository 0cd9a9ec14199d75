package provider

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
)

// ErrScopeNotFound is returned by ListBudgets when the scope itself no longer
// exists, typically a resource group deleted after inventory was listed.
var ErrScopeNotFound = errors.New("scope not found")

// Inventory lists resource groups in the configured subscription.
type Inventory interface {
	// ListResourceGroups returns every resource group with its tags.
	ListResourceGroups(ctx context.Context) ([]model.InventoryItem, error)
}

// Budgets reads and writes budgets attached to a scope.
type Budgets interface {
	// ListBudgets returns the budgets of a scope in provider order. A scope with
	// no budgets yields an empty slice and a nil error. A missing scope yields
	// an error wrapping ErrScopeNotFound.
	ListBudgets(ctx context.Context, scope string) ([]model.Budget, error)

	// CreateBudget creates or replaces the budget described by req.
	CreateBudget(ctx context.Context, req BudgetRequest) (*model.Budget, error)
}

// Provider is a cloud provider able to serve a full reconciliation run.
type Provider interface {
	Inventory
	Budgets
}
