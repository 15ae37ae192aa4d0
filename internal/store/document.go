package store

import (
	"context"
	"fmt"
	"time"

	"estimator/internal/utils"
	"estimator/pkg/types"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentTableName = "documents"

var documentTableColumns = utils.StructTagValues(types.Document{})

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// DocumentByID retrieves a single document by ID
func (r *DocumentRepository) DocumentByID(ctx context.Context, id string) (*types.Document, error) {
	query, args, _ := psql().
		Select(documentTableColumns...).
		From(documentTableName).
		Where(squirrel.Eq{"document_id": id}).
		ToSql()

	var doc types.Document
	err := pgxscan.Get(ctx, r.pool, &doc, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// DocumentsByIDs retrieves every document in ids. Unknown ids are skipped.
func (r *DocumentRepository) DocumentsByIDs(ctx context.Context, ids []string) ([]*types.Document, error) {
	if len(ids) == 0 {
		return []*types.Document{}, nil
	}

	query, args, _ := psql().
		Select(documentTableColumns...).
		From(documentTableName).
		Where(squirrel.Eq{"document_id": ids}).
		ToSql()

	var docs []*types.Document
	err := pgxscan.Select(ctx, r.pool, &docs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents by ids: %w", err)
	}
	return docs, nil
}

// DocumentsByEntity retrieves every document attached to an entity. The
// entity id may be temporary.
func (r *DocumentRepository) DocumentsByEntity(ctx context.Context, entityType types.EntityType, entityID string) ([]*types.Document, error) {
	query, args, _ := documentsByEntityQuery(entityType, entityID)

	var docs []*types.Document
	err := pgxscan.Select(ctx, r.pool, &docs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s documents for %s: %w", entityType, entityID, err)
	}
	return docs, nil
}

func documentsByEntityQuery(entityType types.EntityType, entityID string) (string, []any, error) {
	return psql().
		Select(documentTableColumns...).
		From(documentTableName).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("uploaded_at DESC").
		ToSql()
}

// CreateDocument inserts a new document record
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *types.Document) error {
	if doc.ID == "" {
		doc.ID = utils.NanoID()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UpdatedAt = doc.UploadedAt

	query, args, _ := psql().
		Insert(documentTableName).
		Columns(documentTableColumns...).
		Values(orderedValues(documentTableColumns, utils.StructToMap(doc))...).
		ToSql()

	_, err := r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create document")
}

// UpdateDocumentEntity points a single document at a different entity.
// It is the only write reconciliation performs.
func (r *DocumentRepository) UpdateDocumentEntity(ctx context.Context, documentID string, entityType types.EntityType, entityID string) error {
	query, args, _ := updateDocumentEntityQuery(documentID, entityType, entityID, time.Now())

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update entity of document %s: %w", documentID, err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrDocumentNotFound
	}

	return nil
}

func updateDocumentEntityQuery(documentID string, entityType types.EntityType, entityID string, now time.Time) (string, []any, error) {
	return psql().
		Update(documentTableName).
		Set("entity_type", entityType).
		Set("entity_id", entityID).
		Set("updated_at", now).
		Where(squirrel.Eq{"document_id": documentID}).
		ToSql()
}

// DeleteDocument removes a document record
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	query, args, _ := psql().
		Delete(documentTableName).
		Where(squirrel.Eq{"document_id": id}).
		ToSql()

	_, err := r.pool.Exec(ctx, query, args...)
	return err
}
