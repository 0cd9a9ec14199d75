// Package reconciler drives one budget reconciliation run: it lists tagged
// resource groups, fetches their budgets, creates the missing ones and notifies
// owners whose budgets crossed the alert threshold.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/evaluator"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/notify"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/provider"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/storage"
)

// Config carries everything a run needs to decide and act. It is built once at
// startup and never mutated.
type Config struct {
	SubscriptionID string

	// NameFilter selects budgets by substring and names the budgets this tool creates.
	NameFilter string

	// GroupTag must be present on a resource group for it to be reconciled.
	GroupTag string

	// OwnerTag holds the owner e-mail on a resource group.
	OwnerTag string

	BudgetAmount decimal.Decimal

	// DefaultOwner is used when a group has no owner tag.
	DefaultOwner string

	Threshold     decimal.Decimal
	AlertsEnabled bool

	ActionGroupID string
	PortalTenant  string

	// NormalizeOwnerEmail strips "+tag" suffixes before owner lookup.
	NormalizeOwnerEmail bool

	// DryRun evaluates and logs without creating budgets or sending messages.
	DryRun bool
}

// Observer is told about every finished run, failed ones included.
type Observer interface {
	ObserveRun(summary *model.RunSummary)
}

// Reconciler runs the reconciliation state machine.
type Reconciler struct {
	cfg          Config
	provider     provider.Provider
	resolver     notify.Resolver
	sender       notify.Sender
	broadcasters []notify.Broadcaster
	journal      storage.Journal
	observers    []Observer
	now          func() time.Time
	logger       *slog.Logger
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithNotifier enables direct owner messages.
func WithNotifier(resolver notify.Resolver, sender notify.Sender) Option {
	return func(r *Reconciler) {
		r.resolver = resolver
		r.sender = sender
	}
}

// WithBroadcasters adds address-less delivery channels.
func WithBroadcasters(b ...notify.Broadcaster) Option {
	return func(r *Reconciler) {
		r.broadcasters = append(r.broadcasters, b...)
	}
}

// WithJournal records every run summary.
func WithJournal(j storage.Journal) Option {
	return func(r *Reconciler) {
		r.journal = j
	}
}

// WithObservers registers run observers.
func WithObservers(o ...Observer) Option {
	return func(r *Reconciler) {
		r.observers = append(r.observers, o...)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a reconciler.
func New(cfg Config, p provider.Provider, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		cfg:      cfg,
		provider: p,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan fetches the current state and evaluates it without side effects.
func (r *Reconciler) Plan(ctx context.Context) (*model.Evaluation, error) {
	_, eval, err := r.evaluate(ctx, r.logger)
	return eval, err
}

// Run performs one reconciliation pass. Only structural failures (inventory
// listing, authentication) are returned; everything scoped to a single resource
// group, budget or notification is logged and recorded on the summary.
// pastDue is logged and recorded, never acted on.
func (r *Reconciler) Run(ctx context.Context, pastDue bool) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		ID:        uuid.New().String(),
		StartedAt: r.now(),
		PastDue:   pastDue,
		DryRun:    r.cfg.DryRun,
	}
	logger := r.logger.With("run_id", summary.ID)
	if pastDue {
		logger.Warn("run is past due")
	}

	groups, eval, err := r.evaluate(ctx, logger)
	if err != nil {
		summary.Status = model.RunFailed
		summary.Error = err.Error()
		r.finish(ctx, summary, logger)
		return summary, err
	}

	summary.ResourceGroups = len(groups)
	summary.ExistingBudgets = len(eval.Matched)
	summary.Exceeding = len(eval.Exceeding)
	summary.SkippedScopes = len(eval.Skipped)

	for _, rg := range eval.ToCreate {
		if r.createBudget(ctx, rg, logger) {
			summary.CreatedBudgets++
		} else if !r.cfg.DryRun {
			summary.FailedCreations++
		}
	}

	for _, status := range eval.Exceeding {
		summary.Notifications = append(summary.Notifications, r.notifyOwner(ctx, status, logger))
	}

	summary.Status = model.RunSucceeded
	r.logSummary(eval, summary, logger)
	r.finish(ctx, summary, logger)
	return summary, nil
}

func (r *Reconciler) evaluate(ctx context.Context, logger *slog.Logger) ([]model.ResourceGroup, *model.Evaluation, error) {
	items, err := r.provider.ListResourceGroups(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list resource groups: %w", err)
	}

	var groups []model.ResourceGroup
	for _, item := range items {
		rg := model.NewResourceGroup(item, r.cfg.GroupTag, r.cfg.OwnerTag)
		if !rg.Tagged {
			continue
		}
		logger.Debug("tagged resource group", "resource_group", rg.Name, "location", rg.Location, "owner", rg.Owner)
		groups = append(groups, rg)
	}

	listings := make(map[string]model.BudgetListing, len(groups))
	for _, rg := range groups {
		if rg.ID == "" {
			continue
		}
		budgets, err := r.provider.ListBudgets(ctx, rg.ID)
		switch {
		case errors.Is(err, provider.ErrScopeNotFound):
			logger.Info("resource group gone, skipping scope", "scope", rg.ID, "resource_group", rg.Name)
		case err != nil:
			logger.Warn("list budgets failed, skipping scope", "scope", rg.ID, "resource_group", rg.Name, "error", err)
		}
		listings[rg.ID] = model.BudgetListing{Budgets: budgets, Err: err}
	}

	eval := evaluator.Evaluate(groups, listings, evaluator.Options{
		NameFilter:       r.cfg.NameFilter,
		Threshold:        r.cfg.Threshold,
		ThresholdEnabled: r.cfg.AlertsEnabled,
	})
	return groups, eval, nil
}

// createBudget reports whether a budget now exists for rg because of this call.
func (r *Reconciler) createBudget(ctx context.Context, rg model.ResourceGroup, logger *slog.Logger) bool {
	owner := r.ownerOf(rg)
	req := provider.NewBudgetRequest(rg.ID, r.cfg.NameFilter, r.cfg.BudgetAmount, owner,
		provider.RequestOptions{ActionGroupID: r.cfg.ActionGroupID}, r.now())

	if r.cfg.DryRun {
		logger.Info("dry run: would create budget",
			"budget", req.Name, "resource_group", rg.Name, "amount", req.Amount.String(), "owner", owner)
		return false
	}

	created, err := r.provider.CreateBudget(ctx, req)
	if err != nil {
		logger.Error("create budget failed", "budget", req.Name, "scope", rg.ID, "error", err)
		return false
	}

	logger.Info("created budget",
		"budget", created.Name,
		"resource_group", rg.Name,
		"amount", created.Amount.String(),
		"owner", owner,
		"tiers", len(req.Notifications),
	)
	return true
}

func (r *Reconciler) notifyOwner(ctx context.Context, status model.BudgetStatus, logger *slog.Logger) model.NotificationOutcome {
	owner := r.ownerOf(status.Group)
	outcome := model.NotificationOutcome{
		Budget: status.Budget.Name,
		Scope:  status.Group.ID,
		Owner:  owner,
	}

	amount := status.Budget.Amount
	text := notify.Format(notify.Message{
		OwnerName:      owner,
		ResourceGroup:  status.Group.Name,
		SubscriptionID: r.cfg.SubscriptionID,
		PortalTenant:   r.cfg.PortalTenant,
		Amount:         &amount,
		Spend:          status.Budget.CurrentSpend,
	})

	logger.Warn("budget over threshold",
		"budget", status.Budget.Name,
		"resource_group", status.Group.Name,
		"pct", status.Percentage.StringFixed(2),
		"spend", status.Budget.Spend().StringFixed(2),
		"amount", amount.StringFixed(2),
		"owner", owner,
	)

	if r.cfg.DryRun {
		return outcome
	}

	var errs []error
	if err := r.sendDirect(ctx, &outcome, text, logger); err != nil {
		errs = append(errs, err)
	}

	alert := notify.Alert{
		BudgetName:     status.Budget.Name,
		ResourceGroup:  status.Group.Name,
		Scope:          status.Group.ID,
		Owner:          owner,
		Amount:         amount,
		CurrentSpend:   status.Budget.Spend(),
		ConsumptionPct: status.Percentage,
		ThresholdPct:   r.cfg.Threshold,
		Text:           text,
	}
	for _, b := range r.broadcasters {
		if err := b.Broadcast(ctx, alert); err != nil {
			logger.Error("broadcast failed", "broadcaster", b.Name(), "budget", status.Budget.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		outcome.BroadcastSent = true
	}

	if err := errors.Join(errs...); err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

// sendDirect resolves the owner and messages them. A missing owner is not an error.
func (r *Reconciler) sendDirect(ctx context.Context, outcome *model.NotificationOutcome, text string, logger *slog.Logger) error {
	if r.resolver == nil || r.sender == nil {
		return nil
	}
	if outcome.Owner == "" {
		logger.Warn("budget has no owner, skipping direct message", "budget", outcome.Budget)
		return nil
	}

	email := outcome.Owner
	if r.cfg.NormalizeOwnerEmail {
		email = notify.NormalizeEmail(email)
	}

	address, err := r.resolver.Resolve(ctx, email)
	if errors.Is(err, notify.ErrOwnerNotFound) {
		logger.Warn("owner has no chat account, skipping direct message", "owner", email, "budget", outcome.Budget)
		return nil
	}
	if err != nil {
		logger.Error("resolve owner failed", "owner", email, "budget", outcome.Budget, "error", err)
		return err
	}
	outcome.Address = address

	if err := r.sender.Send(ctx, address, text); err != nil {
		logger.Error("direct message failed", "owner", email, "budget", outcome.Budget, "error", err)
		return err
	}
	outcome.DirectSent = true
	return nil
}

func (r *Reconciler) ownerOf(rg model.ResourceGroup) string {
	if rg.Owner != "" {
		return rg.Owner
	}
	return r.cfg.DefaultOwner
}

func (r *Reconciler) logSummary(eval *model.Evaluation, summary *model.RunSummary, logger *slog.Logger) {
	for _, m := range eval.Matched {
		logger.Debug("budget",
			"budget", m.Budget.Name,
			"resource_group", m.Group.Name,
			"spend", m.Budget.Spend().StringFixed(2),
			"amount", m.Budget.Amount.StringFixed(2),
			"pct", m.Percentage.StringFixed(2),
		)
	}

	attrs := []any{
		"resource_groups", summary.ResourceGroups,
		"existing_budgets", summary.ExistingBudgets,
		"created_budgets", summary.CreatedBudgets,
		"failed_creations", summary.FailedCreations,
		"skipped_scopes", summary.SkippedScopes,
	}
	if r.cfg.AlertsEnabled {
		attrs = append(attrs, "exceeding", summary.Exceeding, "threshold_pct", r.cfg.Threshold.String())
	}
	logger.Info("reconciliation summary", attrs...)
}

func (r *Reconciler) finish(ctx context.Context, summary *model.RunSummary, logger *slog.Logger) {
	summary.FinishedAt = r.now()

	if r.journal != nil {
		// A cancelled run context must not lose the record of the run.
		if err := r.journal.RecordRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Error("record run", "error", err)
		}
	}
	for _, o := range r.observers {
		o.ObserveRun(summary)
	}
}
