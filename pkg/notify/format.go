package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	frogEmoji     = "\U0001F438"
	moneyBagEmoji = "\U0001F4B0"
	warningEmoji  = "⚠️"
)

// Message holds everything needed to render an owner notification.
// Amount and Spend are nil when unknown.
type Message struct {
	OwnerName      string
	ResourceGroup  string
	SubscriptionID string
	PortalTenant   string
	Amount         *decimal.Decimal
	Spend          *decimal.Decimal
}

// Format renders the chat message for m. It is pure: equal inputs give equal output.
func Format(m Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hey %s! %s\n\n", m.OwnerName, frogEmoji)

	switch {
	case m.Amount == nil || m.Spend == nil:
		sb.WriteString("We're having trouble determining your budget or actual spending. " +
			"Please check your Azure environment directly.\n\n")
	case m.Spend.GreaterThanOrEqual(*m.Amount):
		fmt.Fprintf(&sb, "Uh oh! The budget of your Azure environment %s has been exceeded! %s\n\n", m.ResourceGroup, warningEmoji)
		writeAmounts(&sb, *m.Amount, *m.Spend)
		sb.WriteString("Your environment is at risk of being terminated unless you take action.\n\n")
	default:
		fmt.Fprintf(&sb, "Your Azure environment %s is within its budget, but keep an eye on it! %s\n\n", m.ResourceGroup, warningEmoji)
		writeAmounts(&sb, *m.Amount, *m.Spend)
	}

	sb.WriteString("Here's what you can do:\n")
	sb.WriteString("1️⃣ Review and adjust your resources to manage costs.\n")
	sb.WriteString("2️⃣ Consider adjusting your budget settings if necessary.\n\n")
	fmt.Fprintf(&sb, "You can view your cost and usage report in <%s|Cost Analysis>.\n",
		CostAnalysisURL(m.PortalTenant, m.SubscriptionID, m.ResourceGroup))

	return sb.String()
}

// CostAnalysisURL links to the Azure portal cost analysis blade of a resource group.
func CostAnalysisURL(tenant, subscriptionID, resourceGroup string) string {
	prefix := "https://portal.azure.com/#"
	if tenant != "" {
		prefix += "@" + tenant + "/"
	}
	return fmt.Sprintf("%sresource/subscriptions/%s/resourceGroups/%s/costanalysis", prefix, subscriptionID, resourceGroup)
}

func writeAmounts(sb *strings.Builder, amount, spend decimal.Decimal) {
	fmt.Fprintf(sb, "%s Budgeted amount: $%s\n", moneyBagEmoji, amount.StringFixed(2))
	fmt.Fprintf(sb, "%s Actual amount: $%s\n\n", moneyBagEmoji, spend.StringFixed(2))
}
