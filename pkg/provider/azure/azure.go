// Package azure implements the provider interfaces on top of the Azure Resource
// Manager and Consumption APIs.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/consumption/armconsumption"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/provider"
)

// Client talks to a single Azure subscription.
type Client struct {
	groups  *armresources.ResourceGroupsClient
	budgets *armconsumption.BudgetsClient
}

var _ provider.Provider = (*Client)(nil)

// New creates a client for the subscription using the given credential.
func New(subscriptionID string, cred azcore.TokenCredential, opts *arm.ClientOptions) (*Client, error) {
	groups, err := armresources.NewResourceGroupsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create resource groups client: %w", err)
	}
	budgets, err := armconsumption.NewBudgetsClient(cred, opts)
	if err != nil {
		return nil, fmt.Errorf("create budgets client: %w", err)
	}
	return &Client{groups: groups, budgets: budgets}, nil
}

// NewDefault authenticates with the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewDefault(subscriptionID string) (*Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("obtain azure credential: %w", err)
	}
	return New(subscriptionID, cred, nil)
}

func (c *Client) ListResourceGroups(ctx context.Context) ([]model.InventoryItem, error) {
	var items []model.InventoryItem

	pager := c.groups.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resource groups: %w", err)
		}
		for _, rg := range page.Value {
			if rg == nil {
				continue
			}
			items = append(items, convertResourceGroup(rg))
		}
	}
	return items, nil
}

func (c *Client) ListBudgets(ctx context.Context, scope string) ([]model.Budget, error) {
	var budgets []model.Budget

	pager := c.budgets.NewListPager(scope, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("list budgets for %s: %w", scope, provider.ErrScopeNotFound)
			}
			return nil, fmt.Errorf("list budgets for %s: %w", scope, err)
		}
		for _, b := range page.Value {
			if b == nil {
				continue
			}
			budgets = append(budgets, convertBudget(b, scope))
		}
	}
	return budgets, nil
}

func (c *Client) CreateBudget(ctx context.Context, req provider.BudgetRequest) (*model.Budget, error) {
	resp, err := c.budgets.CreateOrUpdate(ctx, req.Scope, req.Name, toSDKBudget(req), nil)
	if err != nil {
		return nil, fmt.Errorf("create budget %s in %s: %w", req.Name, req.Scope, err)
	}
	b := convertBudget(&resp.Budget, req.Scope)
	return &b, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func convertResourceGroup(rg *armresources.ResourceGroup) model.InventoryItem {
	item := model.InventoryItem{
		ID:       deref(rg.ID),
		Name:     deref(rg.Name),
		Location: deref(rg.Location),
		Tags:     make(map[string]string, len(rg.Tags)),
	}
	for k, v := range rg.Tags {
		item.Tags[k] = deref(v)
	}
	return item
}

func convertBudget(b *armconsumption.Budget, scope string) model.Budget {
	out := model.Budget{
		Name:  deref(b.Name),
		Scope: scope,
	}
	props := b.Properties
	if props == nil {
		return out
	}
	if props.Amount != nil {
		out.Amount = decimal.NewFromFloat(*props.Amount)
	}
	if props.CurrentSpend != nil && props.CurrentSpend.Amount != nil {
		spend := decimal.NewFromFloat(*props.CurrentSpend.Amount)
		out.CurrentSpend = &spend
	}
	if props.TimeGrain != nil {
		out.TimeGrain = model.TimeGrain(*props.TimeGrain)
	}
	if props.Category != nil {
		out.Category = string(*props.Category)
	}
	return out
}

func toSDKBudget(req provider.BudgetRequest) armconsumption.Budget {
	notifications := make(map[string]*armconsumption.Notification, len(req.Notifications))
	for _, n := range req.Notifications {
		notifications[n.Key] = &armconsumption.Notification{
			Enabled:       to.Ptr(true),
			Operator:      to.Ptr(armconsumption.OperatorType(n.Operator)),
			Threshold:     to.Ptr(n.Threshold.InexactFloat64()),
			ContactEmails: toPtrSlice(n.ContactEmails),
			ContactGroups: toPtrSlice(n.ContactGroups),
			ContactRoles:  []*string{},
		}
	}

	return armconsumption.Budget{
		Properties: &armconsumption.BudgetProperties{
			Category:  to.Ptr(armconsumption.CategoryType(req.Category)),
			Amount:    to.Ptr(req.Amount.InexactFloat64()),
			TimeGrain: to.Ptr(armconsumption.TimeGrainType(req.TimeGrain)),
			TimePeriod: &armconsumption.BudgetTimePeriod{
				StartDate: to.Ptr(req.StartDate),
				EndDate:   to.Ptr(req.EndDate),
			},
			Notifications: notifications,
		},
	}
}

func toPtrSlice(values []string) []*string {
	out := make([]*string, 0, len(values))
	for _, v := range values {
		out = append(out, to.Ptr(v))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
