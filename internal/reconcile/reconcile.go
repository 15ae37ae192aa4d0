// Package reconcile rewrites document references that were created against
// temporary ids so they point at the permanent rows created on submission.
//
// Every document is updated independently. A failed update leaves that one
// document on its temporary id, is logged, and is reported to the caller;
// it never stops the remaining updates. Documents are never deleted.
package reconcile

import (
	"context"
	"fmt"

	"estimator/internal/utils"
	"estimator/pkg/types"

	"github.com/sirupsen/logrus"
)

type DocumentStore interface {
	DocumentsByEntity(ctx context.Context, entityType types.EntityType, entityID string) ([]*types.Document, error)
	DocumentsByIDs(ctx context.Context, ids []string) ([]*types.Document, error)
	UpdateDocumentEntity(ctx context.Context, documentID string, entityType types.EntityType, entityID string) error
}

// Request describes one finished submission
type Request struct {
	Handle      types.DraftHandle
	EstimateID  string
	Items       []types.DraftLineItem
	Inserted    []*types.InsertedLineItem
	DocumentIDs []string
}

// Failure is a document that could not be moved off a temporary id. An
// empty DocumentID means the lookup itself failed.
type Failure struct {
	DocumentID string           `json:"documentId,omitempty"`
	EntityType types.EntityType `json:"entityType"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Err        error            `json:"-"`
}

func (f Failure) Error() string {
	if f.DocumentID == "" {
		return fmt.Sprintf("lookup of %s documents on %s: %v", f.EntityType, f.From, f.Err)
	}
	return fmt.Sprintf("document %s %s -> %s: %v", f.DocumentID, f.From, f.To, f.Err)
}

type Report struct {
	Updated  int       `json:"updated"`
	Failures []Failure `json:"failures,omitempty"`
	// Orphaned lists temporary item ids with no matching inserted row
	Orphaned []string `json:"orphaned,omitempty"`
}

func (r *Report) OK() bool {
	return len(r.Failures) == 0 && len(r.Orphaned) == 0
}

type Reconciler struct {
	docs   DocumentStore
	logger *logrus.Logger
}

func New(docs DocumentStore, logger *logrus.Logger) *Reconciler {
	return &Reconciler{docs: docs, logger: logger}
}

// Reconcile runs the line item pass and then the estimate pass.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) *Report {
	report := new(Report)
	moved := make(map[string]bool)

	r.reconcileItems(ctx, req, report, moved)
	r.reconcileEstimate(ctx, req, report, moved)

	entry := r.logger.WithFields(logrus.Fields{
		"estimate_id": req.EstimateID,
		"temp_id":     req.Handle.TempID,
		"updated":     report.Updated,
		"failed":      len(report.Failures),
		"orphaned":    len(report.Orphaned),
	})
	if report.OK() {
		entry.Debug("document references reconciled")
	} else {
		entry.Warn("document references partially reconciled, some documents still point at temporary ids")
	}

	return report
}

func (r *Reconciler) reconcileItems(ctx context.Context, req Request, report *Report, moved map[string]bool) {
	permanent := make(map[string]string, len(req.Inserted))
	for _, row := range req.Inserted {
		if row == nil || row.TempItemID == nil || *row.TempItemID == "" {
			continue
		}
		permanent[*row.TempItemID] = row.ID
	}

	for _, item := range req.Items {
		if item.TempItemID == "" {
			continue
		}

		itemID, ok := permanent[item.TempItemID]
		if !ok {
			report.Orphaned = append(report.Orphaned, item.TempItemID)
			r.logger.WithFields(logrus.Fields{
				"estimate_id":  req.EstimateID,
				"temp_item_id": item.TempItemID,
			}).Warn("no inserted line item for temporary item id")
			continue
		}

		r.moveEntity(ctx, types.EntityTypeEstimateItem, item.TempItemID, types.EntityTypeEstimateItem, itemID, report, moved)
	}
}

func (r *Reconciler) reconcileEstimate(ctx context.Context, req Request, report *Report, moved map[string]bool) {
	tempID := req.Handle.TempID
	if tempID != "" {
		r.moveEntity(ctx, types.EntityTypeEstimate, tempID, types.EntityTypeEstimate, req.EstimateID, report, moved)

		// item documents uploaded before any item existed were tagged with
		// the draft id; attach them to the estimate itself
		r.moveEntity(ctx, types.EntityTypeEstimateItem, tempID, types.EntityTypeEstimate, req.EstimateID, report, moved)
	}

	if len(req.DocumentIDs) == 0 {
		return
	}

	docs, err := r.docs.DocumentsByIDs(ctx, req.DocumentIDs)
	if err != nil {
		r.fail(report, Failure{EntityType: types.EntityTypeEstimate, From: "document_ids", To: req.EstimateID, Err: err})
		return
	}

	for _, doc := range docs {
		if moved[doc.ID] || doc.EntityType != types.EntityTypeEstimate || !utils.IsTemporaryID(doc.EntityID) {
			continue
		}
		r.move(ctx, doc, types.EntityTypeEstimate, req.EstimateID, report, moved)
	}
}

func (r *Reconciler) moveEntity(ctx context.Context, fromType types.EntityType, fromID string, toType types.EntityType, toID string, report *Report, moved map[string]bool) {
	// Documents already attached to a permanent row belong to it.
	if !utils.IsTemporaryID(fromID) {
		r.logger.WithFields(logrus.Fields{
			"entity_type": fromType,
			"from":        fromID,
			"to":          toID,
		}).Warn("refusing to move documents off a permanent id")
		return
	}

	docs, err := r.docs.DocumentsByEntity(ctx, fromType, fromID)
	if err != nil {
		r.fail(report, Failure{EntityType: fromType, From: fromID, To: toID, Err: err})
		return
	}

	for _, doc := range docs {
		r.move(ctx, doc, toType, toID, report, moved)
	}
}

func (r *Reconciler) move(ctx context.Context, doc *types.Document, toType types.EntityType, toID string, report *Report, moved map[string]bool) {
	err := r.docs.UpdateDocumentEntity(ctx, doc.ID, toType, toID)
	if err != nil {
		r.fail(report, Failure{DocumentID: doc.ID, EntityType: doc.EntityType, From: doc.EntityID, To: toID, Err: err})
		return
	}

	moved[doc.ID] = true
	report.Updated++
}

func (r *Reconciler) fail(report *Report, f Failure) {
	report.Failures = append(report.Failures, f)
	r.logger.WithError(f.Err).WithFields(logrus.Fields{
		"document_id": f.DocumentID,
		"entity_type": f.EntityType,
		"from":        f.From,
		"to":          f.To,
	}).Warn("failed to reconcile document reference")
}
