package store

import (
	"context"
	"fmt"
	"time"

	"estimator/internal/utils"
	"estimator/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const lineItemTableName = "estimate_items"

var lineItemColumns = utils.StructTagValues(types.LineItem{})

type LineItemRepository struct {
	pool *pgxpool.Pool
}

func NewLineItemRepository(pool *pgxpool.Pool) *LineItemRepository {
	return &LineItemRepository{pool: pool}
}

// CreateLineItems inserts all items in a single statement. Each inserted row
// is echoed back with its temp_item_id so callers never have to match rows
// on mutable fields.
func (r *LineItemRepository) CreateLineItems(ctx context.Context, items []*types.LineItem) ([]*types.InsertedLineItem, error) {
	if len(items) == 0 {
		return []*types.InsertedLineItem{}, nil
	}

	now := time.Now()
	for _, item := range items {
		item.ID = utils.NanoID()
		item.CreatedAt = now
	}

	query, args, err := insertLineItemsQuery(items)
	if err != nil {
		return nil, fmt.Errorf("failed to generate insert line items query: %w", err)
	}

	inserted := make([]*types.InsertedLineItem, 0, len(items))
	err = pgxscan.Select(ctx, r.pool, &inserted, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %d line items: %w", len(items), err)
	}

	return inserted, nil
}

func insertLineItemsQuery(items []*types.LineItem) (string, []any, error) {
	builder := psql().
		Insert(lineItemTableName).
		Columns(lineItemColumns...)

	for _, item := range items {
		builder = builder.Values(orderedValues(lineItemColumns, utils.StructToMap(item))...)
	}

	return builder.Suffix("RETURNING id, temp_item_id, position").ToSql()
}

func (r *LineItemRepository) LineItemsByRevisionID(ctx context.Context, revisionID string) ([]*types.LineItem, error) {
	query, args, err := psql().
		Select(lineItemColumns...).
		From(lineItemTableName).
		Where(sq.Eq{"revision_id": revisionID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate line items query: %w", err)
	}

	var items []*types.LineItem
	err = pgxscan.Select(ctx, r.pool, &items, query, args...)
	if err != nil {
		return nil, utils.ErrorWrapOrNil(err, "failed to get line items")
	}

	return items, nil
}
