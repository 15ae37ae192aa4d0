// Package memstore is an in-memory implementation of the estimate
// repositories. It backs `serve --store memory` and the package tests, and
// can be told to fail individual operations to exercise partial-failure
// paths.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"estimator/internal/utils"
	"estimator/pkg/types"
)

type Op string

const (
	OpCreateCustomer       Op = "create_customer"
	OpCustomerByID         Op = "customer_by_id"
	OpEstimateByID         Op = "estimate_by_id"
	OpCreateEstimate       Op = "create_estimate"
	OpUpdateEstimateTotals Op = "update_estimate_totals"
	OpCreateRevision       Op = "create_revision"
	OpCreateLineItems      Op = "create_line_items"
	OpDocumentsByEntity    Op = "documents_by_entity"
	OpDocumentsByIDs       Op = "documents_by_ids"
	OpUpdateDocumentEntity Op = "update_document_entity"
)

type Store struct {
	mu sync.RWMutex

	customers map[string]*types.Customer
	estimates map[string]*types.Estimate
	revisions map[string]*types.EstimateRevision
	items     map[string]*types.LineItem
	documents map[string]*types.Document

	failures    map[Op][]error
	docFailures map[string]error
	writes      []Op
}

func New() *Store {
	return &Store{
		customers:   make(map[string]*types.Customer),
		estimates:   make(map[string]*types.Estimate),
		revisions:   make(map[string]*types.EstimateRevision),
		items:       make(map[string]*types.LineItem),
		documents:   make(map[string]*types.Document),
		failures:    make(map[Op][]error),
		docFailures: make(map[string]error),
	}
}

// FailOn queues errs to be returned by the next calls of op, one per call
func (s *Store) FailOn(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], errs...)
}

// FailDocument makes every UpdateDocumentEntity call for documentID fail
func (s *Store) FailDocument(documentID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docFailures[documentID] = err
}

// Writes returns the successful write operations in call order
func (s *Store) Writes() []Op {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Op(nil), s.writes...)
}

// must be called with lock held
func (s *Store) injected(op Op) error {
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *Store) CustomerByID(_ context.Context, id string) (*types.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpCustomerByID); err != nil {
		return nil, err
	}

	c, ok := s.customers[id]
	if !ok {
		return nil, types.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) Customers(_ context.Context) ([]*types.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer *types.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpCreateCustomer); err != nil {
		return err
	}
	if _, ok := s.customers[customer.ID]; ok {
		return fmt.Errorf("customer %s: %w", customer.ID, types.ErrDuplicateID)
	}

	customer.CreatedAt = time.Now()
	cp := *customer
	s.customers[customer.ID] = &cp
	s.writes = append(s.writes, OpCreateCustomer)
	return nil
}

func (s *Store) UpsertCustomer(_ context.Context, customer *types.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now()
	}
	cp := *customer
	s.customers[customer.ID] = &cp
	return nil
}

func (s *Store) EstimateByID(_ context.Context, id string) (*types.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpEstimateByID); err != nil {
		return nil, err
	}

	e, ok := s.estimates[id]
	if !ok {
		return nil, types.ErrEstimateNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) CreateEstimate(_ context.Context, estimate *types.Estimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpCreateEstimate); err != nil {
		return err
	}
	if _, ok := s.estimates[estimate.ID]; ok {
		return fmt.Errorf("estimate %s: %w", estimate.ID, types.ErrDuplicateID)
	}

	now := time.Now()
	estimate.CreatedAt = now
	estimate.UpdatedAt = now
	cp := *estimate
	s.estimates[estimate.ID] = &cp
	s.writes = append(s.writes, OpCreateEstimate)
	return nil
}

func (s *Store) UpdateEstimateTotals(_ context.Context, estimateID string, totals types.EstimateTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpUpdateEstimateTotals); err != nil {
		return err
	}

	e, ok := s.estimates[estimateID]
	if !ok {
		return types.ErrEstimateNotFound
	}

	e.EstimateAmount = totals.GrandTotal
	e.ContingencyAmount = totals.ContingencyAmount
	e.UpdatedAt = time.Now()
	s.writes = append(s.writes, OpUpdateEstimateTotals)
	return nil
}

func (s *Store) CreateRevision(_ context.Context, revision *types.EstimateRevision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpCreateRevision); err != nil {
		return err
	}
	if _, ok := s.estimates[revision.EstimateID]; !ok {
		return fmt.Errorf("create revision: %w", types.ErrEstimateNotFound)
	}

	revision.ID = utils.NanoID()
	revision.CreatedAt = time.Now()
	cp := *revision
	s.revisions[revision.ID] = &cp
	s.writes = append(s.writes, OpCreateRevision)
	return nil
}

func (s *Store) RevisionsByEstimateID(_ context.Context, estimateID string) ([]*types.EstimateRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.EstimateRevision, 0)
	for _, r := range s.revisions {
		if r.EstimateID == estimateID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// CreateLineItems is all-or-nothing, matching a single multi-row INSERT
func (s *Store) CreateLineItems(_ context.Context, items []*types.LineItem) ([]*types.InsertedLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpCreateLineItems); err != nil {
		return nil, err
	}

	for _, item := range items {
		if _, ok := s.revisions[item.RevisionID]; !ok {
			return nil, fmt.Errorf("line item references unknown revision %s", item.RevisionID)
		}
	}

	now := time.Now()
	out := make([]*types.InsertedLineItem, 0, len(items))
	for _, item := range items {
		item.ID = utils.NanoID()
		item.CreatedAt = now
		cp := *item
		s.items[item.ID] = &cp
		out = append(out, &types.InsertedLineItem{ID: item.ID, TempItemID: item.TempItemID, Position: item.Position})
	}
	s.writes = append(s.writes, OpCreateLineItems)
	return out, nil
}

func (s *Store) LineItemsByRevisionID(_ context.Context, revisionID string) ([]*types.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.LineItem, 0)
	for _, item := range s.items {
		if item.RevisionID == revisionID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// LineItemsByEstimateID is a test helper; the SQL repositories only look
// items up by revision.
func (s *Store) LineItemsByEstimateID(estimateID string) []*types.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.LineItem, 0)
	for _, item := range s.items {
		if item.EstimateID == estimateID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *Store) DocumentByID(_ context.Context, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) DocumentsByIDs(_ context.Context, ids []string) ([]*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpDocumentsByIDs); err != nil {
		return nil, err
	}

	out := make([]*types.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.documents[id]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) DocumentsByEntity(_ context.Context, entityType types.EntityType, entityID string) ([]*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpDocumentsByEntity); err != nil {
		return nil, err
	}

	out := make([]*types.Document, 0)
	for _, d := range s.documents {
		if d.EntityType == entityType && d.EntityID == entityID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (s *Store) CreateDocument(_ context.Context, doc *types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = utils.NanoID()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UpdatedAt = doc.UploadedAt
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *Store) UpdateDocumentEntity(_ context.Context, documentID string, entityType types.EntityType, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.injected(OpUpdateDocumentEntity); err != nil {
		return err
	}
	if err := s.docFailures[documentID]; err != nil {
		return err
	}

	d, ok := s.documents[documentID]
	if !ok {
		return types.ErrDocumentNotFound
	}

	d.EntityType = entityType
	d.EntityID = entityID
	d.UpdatedAt = time.Now()
	s.writes = append(s.writes, OpUpdateDocumentEntity)
	return nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}
