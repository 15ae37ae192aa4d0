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

const customerTableName = "customers"

var customerColumns = utils.StructTagValues(types.Customer{})

type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) CustomerByID(ctx context.Context, id string) (*types.Customer, error) {
	query, args, err := psql().
		Select(customerColumns...).
		From(customerTableName).
		Where(sq.Eq{"customerid": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate customer query: %w", err)
	}

	var customer types.Customer
	err = pgxscan.Get(ctx, r.pool, &customer, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}

	return &customer, nil
}

func (r *CustomerRepository) Customers(ctx context.Context) ([]*types.Customer, error) {
	query, args, err := psql().
		Select(customerColumns...).
		From(customerTableName).
		OrderBy("customername ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate customers query: %w", err)
	}

	customers := make([]*types.Customer, 0)
	err = pgxscan.Select(ctx, r.pool, &customers, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customers: %w", err)
	}

	return customers, nil
}

// CreateCustomer inserts a customer whose ID was generated by the caller.
// A primary key collision is reported as types.ErrDuplicateID.
func (r *CustomerRepository) CreateCustomer(ctx context.Context, customer *types.Customer) error {
	customer.CreatedAt = time.Now()

	query, args, err := psql().
		Insert(customerTableName).
		SetMap(utils.StructToMap(customer)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert customer query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer %s: %w", customer.ID, types.ErrDuplicateID)
	}

	return utils.ErrorWrapOrNil(err, "failed to create customer")
}

// UpsertCustomer is used by the seed command to keep demo customers in sync
func (r *CustomerRepository) UpsertCustomer(ctx context.Context, customer *types.Customer) error {
	query, args, err := upsertCustomerQuery(customer)
	if err != nil {
		return fmt.Errorf("failed to generate upsert customer query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to upsert customer")
}

func upsertCustomerQuery(customer *types.Customer) (string, []any, error) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now()
	}

	return psql().
		Insert(customerTableName).
		Columns(customerColumns...).
		Values(orderedValues(customerColumns, utils.StructToMap(customer))...).
		Suffix(`ON CONFLICT (customerid) DO UPDATE SET
			customername = EXCLUDED.customername,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			contactemail = EXCLUDED.contactemail,
			phone = EXCLUDED.phone`).
		ToSql()
}
