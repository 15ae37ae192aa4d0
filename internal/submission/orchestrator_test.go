package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"estimator/internal/memstore"
	"estimator/internal/reconcile"
	"estimator/internal/utils"
	"estimator/pkg/types"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const draftTempID = "temp-1700000000000-abcdefghi"

var knownCustomer = &types.Customer{
	ID:      "CUS-100001",
	Name:    "Harbor Dental",
	Address: "12 Wharf St",
	City:    "Portland",
	State:   "ME",
	Zip:     "04101",
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	sent  []string
	total float64
}

func (n *fakeNotifier) EstimateSent(_ context.Context, estimate *types.Estimate, _ *types.Customer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, estimate.ID)
	n.total = estimate.EstimateAmount
	return nil
}

type harness struct {
	store    *memstore.Store
	hook     *logtest.Hook
	guard    *Guard
	notifier *fakeNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T, ids IDFunc) *harness {
	t.Helper()

	store := memstore.New()
	require.NoError(t, store.UpsertCustomer(context.Background(), knownCustomer))

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		store:    store,
		hook:     hook,
		guard:    NewGuard(),
		notifier: &fakeNotifier{},
	}
	h.orch = New(storesFor(store), reconcile.New(store, logger), h.notifier, h.guard, logger, Options{NewID: ids})
	return h
}

func storesFor(store *memstore.Store) Stores {
	return Stores{
		Customers: store,
		Estimates: store,
		Revisions: store,
		LineItems: store,
	}
}

func referenceDraft() types.DraftEstimate {
	return types.DraftEstimate{
		Handle:                types.DraftHandle{TempID: draftTempID},
		ProjectName:           "Operatory remodel",
		CustomerID:            knownCustomer.ID,
		ContingencyPercentage: 10,
		Items: []types.DraftLineItem{
			{Description: "Cabinetry", ItemType: types.ItemTypeMaterial, Cost: 100, MarkupPercentage: 20, Quantity: 2, TempItemID: "temp-item-1"},
			{Description: "Install", ItemType: types.ItemTypeLabor, Cost: 50, MarkupPercentage: 0, Quantity: 1, TempItemID: "temp-item-2"},
		},
	}
}

func TestSubmit_ReferenceScenario(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	ctx := context.Background()

	res, err := h.orch.Submit(ctx, referenceDraft(), []*types.Customer{knownCustomer}, types.EstimateStatusDraft)
	require.NoError(t, err)

	assert.True(t, res.Submitted)
	assert.Equal(t, StageFinalized, res.Stage)
	assert.Equal(t, "EST-000001", res.EstimateID)
	assert.Equal(t, knownCustomer.ID, res.CustomerID)
	assert.Empty(t, res.Warnings)
	assert.InDelta(t, 290, res.Totals.Subtotal, 1e-9)
	assert.InDelta(t, 29, res.Totals.ContingencyAmount, 1e-9)
	assert.InDelta(t, 319, res.Totals.GrandTotal, 1e-9)

	est, err := h.store.EstimateByID(ctx, res.EstimateID)
	require.NoError(t, err)
	assert.InDelta(t, 319, est.EstimateAmount, 1e-9)
	assert.InDelta(t, 29, est.ContingencyAmount, 1e-9)
	assert.Equal(t, knownCustomer.Location(), est.Location)
	assert.Equal(t, types.EstimateStatusDraft, est.Status)

	revs, err := h.store.RevisionsByEstimateID(ctx, res.EstimateID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, 1, revs[0].Version)
	assert.True(t, revs[0].IsSelectedForView)
	assert.Equal(t, res.RevisionID, revs[0].ID)

	items := h.store.LineItemsByEstimateID(res.EstimateID)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Position)
	assert.InDelta(t, 240, items[0].TotalPrice, 1e-9)
	assert.InDelta(t, 40, items[0].GrossMargin, 1e-9)
	assert.Equal(t, "temp-item-1", utils.PtrString(items[0].TempItemID))
	assert.Equal(t, 1, items[1].Position)
	assert.InDelta(t, 50, items[1].TotalPrice, 1e-9)

	assert.Equal(t, []memstore.Op{
		memstore.OpCreateEstimate,
		memstore.OpCreateRevision,
		memstore.OpCreateLineItems,
		memstore.OpUpdateEstimateTotals,
	}, h.store.Writes())
	assert.Equal(t, 0, h.guard.InFlight())
	assert.Empty(t, h.notifier.sent, "drafts are not announced")
}

func TestSubmit_ValidationFailsBeforeAdmission(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	draft := referenceDraft()
	draft.ProjectName = " "
	draft.Items[1].Quantity = 0

	res, err := h.orch.Submit(context.Background(), draft, nil, types.EstimateStatusDraft)
	assert.Nil(t, res)

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "projectName")
	assert.Contains(t, verr.Fields, "items[1].quantity")
	assert.Empty(t, h.store.Writes())
}

func TestSubmit_RejectsUnknownStatus(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	_, err := h.orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatus("archived"))

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")
}

// blockingEstimates parks the first CreateEstimate until release is closed
type blockingEstimates struct {
	*memstore.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingEstimates) CreateEstimate(ctx context.Context, estimate *types.Estimate) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.Store.CreateEstimate(ctx, estimate)
}

func TestSubmit_DuplicateWhileInFlight(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.UpsertCustomer(context.Background(), knownCustomer))
	logger, _ := logtest.NewNullLogger()

	blocking := &blockingEstimates{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	stores := storesFor(store)
	stores.Estimates = blocking

	orch := New(stores, reconcile.New(store, logger), nil, NewGuard(), logger, Options{NewID: sequenceIDs("000001", "000002")})

	var first *Result
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		first, firstErr = orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusDraft)
	}()

	<-blocking.entered
	writesBefore := store.Writes()

	second, err := orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusDraft)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Submitted)
	assert.Equal(t, writesBefore, store.Writes(), "duplicate submit must not write")

	close(blocking.release)
	<-done

	require.NoError(t, firstErr)
	assert.True(t, first.Submitted)

	// released once the first run is done
	third, err := orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusDraft)
	require.NoError(t, err)
	assert.False(t, third.Duplicate)
}

func TestSubmit_LineItemFailureIsFatal(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	h.store.FailOn(memstore.OpCreateLineItems, errors.New("connection reset"))

	res, err := h.orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusSent)

	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageRevisionCreated, serr.Stage)
	assert.Equal(t, "insert line items", serr.Op)
	assert.Contains(t, serr.UserMessage(), "line items")

	require.NotNil(t, res)
	assert.False(t, res.Submitted)
	assert.Equal(t, StageRevisionCreated, res.Stage)

	// earlier rows stay behind, nothing after the failure runs
	ctx := context.Background()
	est, err := h.store.EstimateByID(ctx, res.EstimateID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.EstimateAmount)

	revs, err := h.store.RevisionsByEstimateID(ctx, res.EstimateID)
	require.NoError(t, err)
	assert.Len(t, revs, 1)
	assert.Empty(t, h.store.LineItemsByEstimateID(res.EstimateID))
	assert.Empty(t, h.notifier.sent)
	assert.Equal(t, 0, h.guard.InFlight())

	var logged bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "estimate submission aborted" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestSubmit_UnknownCustomerIsFatal(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	draft := referenceDraft()
	draft.CustomerID = "CUS-999999"

	res, err := h.orch.Submit(context.Background(), draft, nil, types.EstimateStatusDraft)

	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageAdmitted, serr.Stage)
	assert.ErrorIs(t, err, types.ErrCustomerNotFound)
	assert.False(t, res.Submitted)
	assert.Empty(t, h.store.Writes())
}

func TestSubmit_KnownCustomerSkipsLookup(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	h.store.FailOn(memstore.OpCustomerByID, errors.New("lookup must not happen"))

	res, err := h.orch.Submit(context.Background(), referenceDraft(), []*types.Customer{knownCustomer}, types.EstimateStatusDraft)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
}

func TestSubmit_NewCustomerRetriesOnCollision(t *testing.T) {
	h := newHarness(t, sequenceIDs("100001", "000002", "000003"))

	draft := referenceDraft()
	draft.CustomerID = ""
	draft.NewCustomer = &types.NewCustomer{
		Name:    "Bayside Bakery",
		Address: "4 Dock Rd",
		City:    "Bath",
		State:   "ME",
		Zip:     "04530",
	}

	res, err := h.orch.Submit(context.Background(), draft, nil, types.EstimateStatusDraft)
	require.NoError(t, err)

	// CUS-100001 is taken by the seeded customer
	assert.Equal(t, "CUS-000002", res.CustomerID)
	assert.Equal(t, "EST-000003", res.EstimateID)

	c, err := h.store.CustomerByID(context.Background(), "CUS-000002")
	require.NoError(t, err)
	assert.Equal(t, "Bayside Bakery", c.Name)

	est, err := h.store.EstimateByID(context.Background(), res.EstimateID)
	require.NoError(t, err)
	assert.Equal(t, "4 Dock Rd", est.Address)
	assert.Equal(t, "Bath", est.City)
}

func TestSubmit_CustomLocationOverridesCustomer(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	draft := referenceDraft()
	draft.UseCustomLocation = true
	draft.Location = types.Location{Address: "77 Site Ln", City: "Augusta", State: "ME", Zip: "04330"}

	res, err := h.orch.Submit(context.Background(), draft, []*types.Customer{knownCustomer}, types.EstimateStatusDraft)
	require.NoError(t, err)

	est, err := h.store.EstimateByID(context.Background(), res.EstimateID)
	require.NoError(t, err)
	assert.Equal(t, draft.Location, est.Location)
}

func TestSubmit_ReconcilesDraftDocuments(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	ctx := context.Background()

	docs := []*types.Document{
		{ID: "doc-plan", EntityType: types.EntityTypeEstimate, EntityID: draftTempID},
		{ID: "doc-quote-1", EntityType: types.EntityTypeEstimateItem, EntityID: "temp-item-1"},
		{ID: "doc-quote-2", EntityType: types.EntityTypeEstimateItem, EntityID: "temp-item-2"},
	}
	for _, d := range docs {
		require.NoError(t, h.store.CreateDocument(ctx, d))
	}

	res, err := h.orch.Submit(ctx, referenceDraft(), nil, types.EstimateStatusDraft)
	require.NoError(t, err)
	require.NotNil(t, res.Reconciliation)
	assert.True(t, res.Reconciliation.OK())
	assert.Equal(t, 3, res.Reconciliation.Updated)

	items := h.store.LineItemsByEstimateID(res.EstimateID)
	require.Len(t, items, 2)

	plan, err := h.store.DocumentByID(ctx, "doc-plan")
	require.NoError(t, err)
	assert.Equal(t, res.EstimateID, plan.EntityID)

	q1, err := h.store.DocumentByID(ctx, "doc-quote-1")
	require.NoError(t, err)
	assert.Equal(t, types.EntityTypeEstimateItem, q1.EntityType)
	assert.Equal(t, items[0].ID, q1.EntityID)

	q2, err := h.store.DocumentByID(ctx, "doc-quote-2")
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, q2.EntityID)
}

func TestSubmit_ReconcileFailureIsAWarning(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	ctx := context.Background()

	require.NoError(t, h.store.CreateDocument(ctx, &types.Document{ID: "doc-plan", EntityType: types.EntityTypeEstimate, EntityID: draftTempID}))
	h.store.FailDocument("doc-plan", errors.New("row locked"))

	res, err := h.orch.Submit(ctx, referenceDraft(), nil, types.EstimateStatusDraft)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.False(t, res.Reconciliation.OK())
	require.Len(t, res.Warnings, 1)

	doc, err := h.store.DocumentByID(ctx, "doc-plan")
	require.NoError(t, err)
	assert.Equal(t, draftTempID, doc.EntityID)
}

func TestSubmit_TotalsFailureIsAWarning(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	h.store.FailOn(memstore.OpUpdateEstimateTotals, errors.New("timeout"))

	res, err := h.orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusDraft)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.Equal(t, StageFinalized, res.Stage)
	require.Len(t, res.Warnings, 1)
	assert.InDelta(t, 319, res.Totals.GrandTotal, 1e-9)

	est, err := h.store.EstimateByID(context.Background(), res.EstimateID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.EstimateAmount)
}

func TestSubmit_SentNotifiesCustomer(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	res, err := h.orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusSent)
	require.NoError(t, err)
	assert.Equal(t, []string{res.EstimateID}, h.notifier.sent)
	assert.InDelta(t, 319, h.notifier.total, 1e-9)
}

func TestSubmit_NotifyFailureIsAWarning(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))
	h.notifier.err = errors.New("webhook returned 502")

	res, err := h.orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusSent)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "notification")
}

func TestSubmit_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.orch.Submit(ctx, referenceDraft(), nil, types.EstimateStatusDraft)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
}

type panickingRevisions struct{}

func (panickingRevisions) CreateRevision(context.Context, *types.EstimateRevision) error {
	panic("driver exploded")
}

func TestSubmit_ReleasesGuardOnPanic(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.UpsertCustomer(context.Background(), knownCustomer))
	logger, _ := logtest.NewNullLogger()
	guard := NewGuard()

	stores := storesFor(store)
	stores.Revisions = panickingRevisions{}
	orch := New(stores, nil, nil, guard, logger, Options{NewID: sequenceIDs("000001"), StepTimeout: time.Second})

	assert.Panics(t, func() {
		_, _ = orch.Submit(context.Background(), referenceDraft(), nil, types.EstimateStatusDraft)
	})
	assert.Equal(t, 0, guard.InFlight())
}

func TestSubmit_VendorItemsStoredAsMaterial(t *testing.T) {
	h := newHarness(t, sequenceIDs("000001"))

	draft := referenceDraft()
	draft.Items[0].ItemType = "vendor"

	res, err := h.orch.Submit(context.Background(), draft, nil, types.EstimateStatusDraft)
	require.NoError(t, err)

	items := h.store.LineItemsByEstimateID(res.EstimateID)
	require.Len(t, items, 2)
	assert.Equal(t, types.ItemTypeMaterial, items[0].ItemType)
}
