// Package submission turns a draft estimate into customer, estimate,
// revision and line item rows, then reconciles documents and finalizes
// totals.
//
// The backing store offers no cross-table transactions. Stages up to and
// including the line item insert are fatal: a failure stops the sequence and
// leaves earlier rows in place. Later stages only log and add warnings.
package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"estimator/internal/calc"
	"estimator/internal/reconcile"
	"estimator/internal/utils"
	"estimator/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Stage string

const (
	StageIdle             Stage = "idle"
	StageAdmitted         Stage = "admitted"
	StageCustomerResolved Stage = "customer_resolved"
	StageEstimateCreated  Stage = "estimate_created"
	StageRevisionCreated  Stage = "revision_created"
	StageItemsInserted    Stage = "items_inserted"
	StageReconciled       Stage = "reconciled"
	StageFinalized        Stage = "finalized"
	StageReleased         Stage = "released"
)

type CustomerStore interface {
	CustomerByID(ctx context.Context, id string) (*types.Customer, error)
	CreateCustomer(ctx context.Context, customer *types.Customer) error
}

type EstimateStore interface {
	CreateEstimate(ctx context.Context, estimate *types.Estimate) error
	UpdateEstimateTotals(ctx context.Context, estimateID string, totals types.EstimateTotals) error
}

type RevisionStore interface {
	CreateRevision(ctx context.Context, revision *types.EstimateRevision) error
}

type LineItemStore interface {
	CreateLineItems(ctx context.Context, items []*types.LineItem) ([]*types.InsertedLineItem, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) *reconcile.Report
}

type Notifier interface {
	EstimateSent(ctx context.Context, estimate *types.Estimate, customer *types.Customer) error
}

type Stores struct {
	Customers CustomerStore
	Estimates EstimateStore
	Revisions RevisionStore
	LineItems LineItemStore
}

type Options struct {
	// MaxIDAttempts bounds regeneration of CUS-/EST- ids on collision
	MaxIDAttempts int
	// StepTimeout bounds each individual store call. Zero means no limit.
	StepTimeout time.Duration

	NewID IDFunc
	Now   func() time.Time
}

// Result describes a finished Submit call. Duplicate is set, with nothing
// written, when the draft was already being submitted.
type Result struct {
	Submitted      bool                 `json:"submitted"`
	Duplicate      bool                 `json:"duplicate,omitempty"`
	Stage          Stage                `json:"stage"`
	CustomerID     string               `json:"customerId,omitempty"`
	EstimateID     string               `json:"estimateId,omitempty"`
	RevisionID     string               `json:"revisionId,omitempty"`
	LineItemIDs    []string             `json:"lineItemIds,omitempty"`
	Totals         types.EstimateTotals `json:"totals"`
	Reconciliation *reconcile.Report    `json:"reconciliation,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
}

type Orchestrator struct {
	stores     Stores
	reconciler Reconciler
	notifier   Notifier
	guard      *Guard
	logger     *logrus.Logger
	opts       Options
}

// New builds an orchestrator. notifier may be nil when no notification
// channel is configured.
func New(stores Stores, reconciler Reconciler, notifier Notifier, guard *Guard, logger *logrus.Logger, opts Options) *Orchestrator {
	if opts.MaxIDAttempts <= 0 {
		opts.MaxIDAttempts = DefaultMaxIDAttempts
	}
	if opts.NewID == nil {
		opts.NewID = defaultIDFunc
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if guard == nil {
		guard = NewGuard()
	}

	return &Orchestrator{
		stores:     stores,
		reconciler: reconciler,
		notifier:   notifier,
		guard:      guard,
		logger:     logger,
		opts:       opts,
	}
}

// Submit persists draft with the requested status.
//
// Validation problems return a *types.ValidationError before anything is
// admitted. A draft already in flight returns Result.Duplicate and no error.
// Fatal failures return the partial Result together with a *SubmitError.
// Once admitted the write sequence ignores cancellation of ctx.
func (o *Orchestrator) Submit(ctx context.Context, draft types.DraftEstimate, knownCustomers []*types.Customer, status types.EstimateStatus) (*Result, error) {
	if !status.Valid() {
		verr := new(types.ValidationError)
		verr.Add("status", fmt.Sprintf("unknown status %q", status))
		return nil, verr
	}

	if err := draft.Validate(); err != nil {
		return nil, err
	}

	key := KeyFor(draft.Handle, o.opts.Now())
	if !o.guard.TryAdmit(key) {
		o.logger.WithField("submission_key", key).Info("submission already in flight for draft, ignoring")
		return &Result{Duplicate: true, Stage: StageIdle}, nil
	}

	r := &run{
		o:      o,
		draft:  draft,
		known:  knownCustomers,
		status: status,
		result: &Result{Stage: StageAdmitted},
		entry: o.logger.WithFields(logrus.Fields{
			"run_id":         uuid.NewString(),
			"submission_key": key,
			"status":         status,
		}),
	}

	defer func() {
		o.guard.Release(key)
		r.entry.WithField("stage", StageReleased).Debug("submission released")
	}()

	r.entry.WithField("stage", StageAdmitted).Debug("submission admitted")

	return r.execute(context.WithoutCancel(ctx))
}

type run struct {
	o      *Orchestrator
	draft  types.DraftEstimate
	known  []*types.Customer
	status types.EstimateStatus
	result *Result
	entry  *logrus.Entry
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	customer, err := r.resolveCustomer(ctx)
	if err != nil {
		return r.fatal("resolve customer", err)
	}
	r.result.CustomerID = customer.ID
	r.advance(StageCustomerResolved)

	estimate := &types.Estimate{
		CustomerID:            customer.ID,
		ProjectName:           strings.TrimSpace(r.draft.ProjectName),
		JobDescription:        strings.TrimSpace(r.draft.JobDescription),
		Location:              resolveLocation(r.draft, customer),
		Status:                r.status,
		ContingencyPercentage: r.draft.ContingencyPercentage,
	}

	_, err = insertWithRetry(r.o.opts.NewID, EstimateIDPrefix, r.o.opts.MaxIDAttempts, func(id string) error {
		estimate.ID = id
		stepCtx, cancel := r.stepContext(ctx)
		defer cancel()
		return r.o.stores.Estimates.CreateEstimate(stepCtx, estimate)
	})
	if err != nil {
		return r.fatal("create estimate", err)
	}
	r.result.EstimateID = estimate.ID
	r.entry = r.entry.WithField("estimate_id", estimate.ID)
	r.advance(StageEstimateCreated)

	revision := &types.EstimateRevision{
		EstimateID:        estimate.ID,
		Version:           1,
		IsSelectedForView: true,
		Status:            r.status,
	}
	if err := r.call(ctx, func(ctx context.Context) error {
		return r.o.stores.Revisions.CreateRevision(ctx, revision)
	}); err != nil {
		return r.fatal("create revision", err)
	}
	r.result.RevisionID = revision.ID
	r.advance(StageRevisionCreated)

	rows := buildLineItems(r.draft.Items, estimate.ID, revision.ID)
	var inserted []*types.InsertedLineItem
	if err := r.call(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = r.o.stores.LineItems.CreateLineItems(ctx, rows)
		return err
	}); err != nil {
		return r.fatal("insert line items", err)
	}
	for _, row := range inserted {
		r.result.LineItemIDs = append(r.result.LineItemIDs, row.ID)
	}
	r.advance(StageItemsInserted)

	// Everything below is best effort.

	if r.o.reconciler != nil {
		report := r.o.reconciler.Reconcile(ctx, reconcile.Request{
			Handle:      r.draft.Handle,
			EstimateID:  estimate.ID,
			Items:       r.draft.Items,
			Inserted:    inserted,
			DocumentIDs: r.draft.DocumentIDs,
		})
		r.result.Reconciliation = report
		if report != nil && !report.OK() {
			r.warn("Some attached documents could not be linked to the estimate and are still attached to the draft.")
		}
	}
	r.advance(StageReconciled)

	summary := calc.SummarizeLineItems(rows, r.draft.ContingencyPercentage)
	r.result.Totals = summary.Totals()
	if err := r.call(ctx, func(ctx context.Context) error {
		return r.o.stores.Estimates.UpdateEstimateTotals(ctx, estimate.ID, r.result.Totals)
	}); err != nil {
		r.entry.WithError(err).Warn("failed to finalize estimate totals, estimate keeps placeholder amount")
		r.warn("The estimate was saved but its total could not be updated.")
	} else {
		estimate.EstimateAmount = r.result.Totals.GrandTotal
		estimate.ContingencyAmount = r.result.Totals.ContingencyAmount
	}
	r.advance(StageFinalized)

	if r.status == types.EstimateStatusSent {
		r.notify(ctx, estimate, customer)
	}

	r.result.Submitted = true
	r.entry.WithFields(logrus.Fields{
		"grand_total": r.result.Totals.GrandTotal,
		"items":       len(rows),
		"warnings":    len(r.result.Warnings),
	}).Info("estimate submitted")

	return r.result, nil
}

func (r *run) resolveCustomer(ctx context.Context) (*types.Customer, error) {
	if nc := r.draft.NewCustomer; nc != nil {
		customer := &types.Customer{
			Name:         strings.TrimSpace(nc.Name),
			Address:      nc.Address,
			City:         nc.City,
			State:        nc.State,
			Zip:          nc.Zip,
			ContactEmail: strings.TrimSpace(nc.ContactEmail),
			Phone:        strings.TrimSpace(nc.Phone),
		}

		_, err := insertWithRetry(r.o.opts.NewID, CustomerIDPrefix, r.o.opts.MaxIDAttempts, func(id string) error {
			customer.ID = id
			stepCtx, cancel := r.stepContext(ctx)
			defer cancel()
			return r.o.stores.Customers.CreateCustomer(stepCtx, customer)
		})
		if err != nil {
			return nil, err
		}

		return customer, nil
	}

	id := strings.TrimSpace(r.draft.CustomerID)
	for _, c := range r.known {
		if c != nil && c.ID == id {
			return c, nil
		}
	}

	var customer *types.Customer
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		customer, err = r.o.stores.Customers.CustomerByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", id, err)
	}

	return customer, nil
}

func (r *run) notify(ctx context.Context, estimate *types.Estimate, customer *types.Customer) {
	if r.o.notifier == nil {
		r.entry.Debug("no notifier configured, skipping sent notification")
		return
	}

	err := r.call(ctx, func(ctx context.Context) error {
		return r.o.notifier.EstimateSent(ctx, estimate, customer)
	})
	if err != nil {
		r.entry.WithError(err).Warn("failed to send estimate notification")
		r.warn("The estimate was saved but the customer notification could not be sent.")
	}
}

func (r *run) call(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()
	return fn(stepCtx)
}

func (r *run) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.o.opts.StepTimeout > 0 {
		return context.WithTimeout(ctx, r.o.opts.StepTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *run) advance(stage Stage) {
	r.result.Stage = stage
	r.entry.WithField("stage", stage).Debug("submission stage complete")
}

func (r *run) warn(msg string) {
	r.result.Warnings = append(r.result.Warnings, msg)
}

func (r *run) fatal(op string, err error) (*Result, error) {
	serr := &SubmitError{Stage: r.result.Stage, Op: op, Err: err}
	r.entry.WithError(err).WithField("stage", r.result.Stage).Error("estimate submission aborted")
	return r.result, serr
}

func resolveLocation(draft types.DraftEstimate, customer *types.Customer) types.Location {
	if draft.UseCustomLocation {
		return draft.Location
	}
	return customer.Location()
}

func buildLineItems(items []types.DraftLineItem, estimateID, revisionID string) []*types.LineItem {
	rows := make([]*types.LineItem, len(items))
	for i, item := range items {
		f := calc.ForItem(item)
		rows[i] = &types.LineItem{
			EstimateID:            estimateID,
			RevisionID:            revisionID,
			TempItemID:            utils.NilIfEmpty(item.TempItemID),
			Position:              i,
			Description:           strings.TrimSpace(item.Description),
			ItemType:              item.ItemType.Normalize(),
			Cost:                  item.Cost,
			MarkupPercentage:      item.MarkupPercentage,
			Quantity:              item.Quantity,
			MarkupAmount:          f.MarkupAmount,
			UnitPrice:             f.UnitPrice,
			TotalPrice:            f.TotalPrice,
			GrossMargin:           f.GrossMargin,
			GrossMarginPercentage: f.GrossMarginPercentage,
			VendorID:              item.VendorID,
			SubcontractorID:       item.SubcontractorID,
			DocumentID:            item.DocumentID,
		}
	}
	return rows
}
