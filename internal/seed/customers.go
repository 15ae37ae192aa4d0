package seed

import (
	"context"
	"fmt"

	"estimator/pkg/types"
)

type CustomerUpserter interface {
	UpsertCustomer(ctx context.Context, customer *types.Customer) error
}

var demoCustomers = []*types.Customer{
	{ID: "CUS-100001", Name: "Harbor Dental Group", Address: "12 Wharf St", City: "Portland", State: "ME", Zip: "04101", ContactEmail: "office+seed1@example.com", Phone: "207-555-0101"},
	{ID: "CUS-100002", Name: "Bayside Bakery", Address: "4 Dock Rd", City: "Bath", State: "ME", Zip: "04530", ContactEmail: "owner+seed2@example.com", Phone: "207-555-0102"},
	{ID: "CUS-100003", Name: "Pine Ridge HOA", Address: "800 Ridge Ln", City: "Bangor", State: "ME", Zip: "04401", ContactEmail: "board+seed3@example.com", Phone: "207-555-0103"},
	{ID: "CUS-100004", Name: "Morrison Residence", Address: "27 Elm Ave", City: "Augusta", State: "ME", Zip: "04330", ContactEmail: "j.morrison+seed4@example.com", Phone: "207-555-0104"},
	{ID: "CUS-100005", Name: "Cascade Brewing Co", Address: "3 Mill Yard", City: "Biddeford", State: "ME", Zip: "04005", ContactEmail: "ops+seed5@example.com", Phone: "207-555-0105"},
}

// DemoCustomers returns copies of the seeded customers
func DemoCustomers() []*types.Customer {
	out := make([]*types.Customer, len(demoCustomers))
	for i, c := range demoCustomers {
		cp := *c
		out[i] = &cp
	}
	return out
}

// SeedCustomers upserts the demo customers and returns how many were written
func SeedCustomers(ctx context.Context, repo CustomerUpserter) (int, error) {
	seeded := 0
	for _, customer := range DemoCustomers() {
		if err := repo.UpsertCustomer(ctx, customer); err != nil {
			return seeded, fmt.Errorf("failed to seed customer %s: %w", customer.ID, err)
		}
		seeded++
	}

	return seeded, nil
}
