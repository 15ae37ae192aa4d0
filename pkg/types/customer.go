package types

import "time"

type Customer struct {
	ID           string    `db:"customerid" json:"customerId"`
	Name         string    `db:"customername" json:"customerName"`
	Address      string    `db:"address" json:"address"`
	City         string    `db:"city" json:"city"`
	State        string    `db:"state" json:"state"`
	Zip          string    `db:"zip" json:"zip"`
	ContactEmail string    `db:"contactemail" json:"contactEmail"`
	Phone        string    `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Location returns the customer's address as a site location
func (c *Customer) Location() Location {
	return Location{
		Address: c.Address,
		City:    c.City,
		State:   c.State,
		Zip:     c.Zip,
	}
}

// NewCustomer holds the inline customer fields captured on a draft when
// the contractor is quoting someone not yet on file.
type NewCustomer struct {
	Name         string `json:"customerName"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	ContactEmail string `json:"contactEmail"`
	Phone        string `json:"phone"`
}
