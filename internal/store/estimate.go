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

const estimateTableName = "estimates"

var estimateColumns = utils.StructTagValues(types.Estimate{})

type EstimateRepository struct {
	pool *pgxpool.Pool
}

func NewEstimateRepository(pool *pgxpool.Pool) *EstimateRepository {
	return &EstimateRepository{pool: pool}
}

func (r *EstimateRepository) EstimateByID(ctx context.Context, id string) (*types.Estimate, error) {
	query, args, err := psql().
		Select(estimateColumns...).
		From(estimateTableName).
		Where(sq.Eq{"estimateid": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate estimate query: %w", err)
	}

	var estimate = new(types.Estimate)
	err = pgxscan.Get(ctx, r.pool, estimate, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrEstimateNotFound
	}

	return estimate, nil
}

// CreateEstimate inserts an estimate whose ID was generated by the caller.
// A primary key collision is reported as types.ErrDuplicateID.
func (r *EstimateRepository) CreateEstimate(ctx context.Context, estimate *types.Estimate) error {
	now := time.Now()
	estimate.CreatedAt = now
	estimate.UpdatedAt = now

	query, args, err := psql().
		Insert(estimateTableName).
		SetMap(utils.StructToMap(estimate)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert estimate query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("estimate %s: %w", estimate.ID, types.ErrDuplicateID)
	}

	return utils.ErrorWrapOrNil(err, "failed to create estimate")
}

func (r *EstimateRepository) UpdateEstimateTotals(ctx context.Context, estimateID string, totals types.EstimateTotals) error {
	query, args, err := updateEstimateTotalsQuery(estimateID, totals, time.Now())
	if err != nil {
		return fmt.Errorf("failed to generate update totals query for estimate %s: %w", estimateID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update totals for estimate %s: %w", estimateID, err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrEstimateNotFound
	}

	return nil
}

// The estimate row stores the grand total as its amount.
func updateEstimateTotalsQuery(estimateID string, totals types.EstimateTotals, now time.Time) (string, []any, error) {
	return psql().
		Update(estimateTableName).
		Set("estimateamount", totals.GrandTotal).
		Set("contingencyamount", totals.ContingencyAmount).
		Set("updated_at", now).
		Where(sq.Eq{"estimateid": estimateID}).
		ToSql()
}
