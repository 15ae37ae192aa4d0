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

const revisionTableName = "estimate_revisions"

var revisionColumns = utils.StructTagValues(types.EstimateRevision{})

type RevisionRepository struct {
	pool *pgxpool.Pool
}

func NewRevisionRepository(pool *pgxpool.Pool) *RevisionRepository {
	return &RevisionRepository{pool: pool}
}

func (r *RevisionRepository) CreateRevision(ctx context.Context, revision *types.EstimateRevision) error {
	revision.ID = utils.NanoID()
	revision.CreatedAt = time.Now()

	query, args, err := psql().
		Insert(revisionTableName).
		SetMap(utils.StructToMap(revision)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert revision query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create estimate revision")
}

func (r *RevisionRepository) RevisionsByEstimateID(ctx context.Context, estimateID string) ([]*types.EstimateRevision, error) {
	query, args, err := psql().
		Select(revisionColumns...).
		From(revisionTableName).
		Where(sq.Eq{"estimate_id": estimateID}).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate revisions query: %w", err)
	}

	var revisions []*types.EstimateRevision
	err = pgxscan.Select(ctx, r.pool, &revisions, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch revisions for estimate %s: %w", estimateID, err)
	}

	return revisions, nil
}
