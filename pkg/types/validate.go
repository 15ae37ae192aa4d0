package types

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks a draft before it is admitted for submission. It returns
// nil or a *ValidationError.
func (d *DraftEstimate) Validate() error {
	verr := new(ValidationError)

	if strings.TrimSpace(d.ProjectName) == "" {
		verr.Add("projectName", "is required")
	}

	switch {
	case d.NewCustomer != nil:
		if strings.TrimSpace(d.NewCustomer.Name) == "" {
			verr.Add("newCustomer.customerName", "is required")
		}
	case strings.TrimSpace(d.CustomerID) == "":
		verr.Add("customerId", "select a customer or enter a new one")
	}

	if d.UseCustomLocation && strings.TrimSpace(d.Location.Address) == "" {
		verr.Add("location.address", "is required when using a custom site location")
	}

	if d.Handle.TempID != "" && !strings.HasPrefix(d.Handle.TempID, TemporaryIDPrefix) {
		verr.Add("handle.tempId", "must be a temporary id")
	}

	if !finite(d.ContingencyPercentage) || d.ContingencyPercentage < 0 {
		verr.Add("contingencyPercentage", "must be a non-negative number")
	}

	if len(d.Items) == 0 {
		verr.Add("items", "at least one line item is required")
	}

	seen := make(map[string]int, len(d.Items))
	for i, item := range d.Items {
		prefix := fmt.Sprintf("items[%d]", i)

		if strings.TrimSpace(item.Description) == "" {
			verr.Add(prefix+".description", "is required")
		}
		if !item.ItemType.Valid() {
			verr.Add(prefix+".itemType", fmt.Sprintf("unknown item type %q", item.ItemType))
		}
		if !finite(item.Cost) || item.Cost < 0 {
			verr.Add(prefix+".cost", "must be a non-negative number")
		}
		if !finite(item.MarkupPercentage) {
			verr.Add(prefix+".markupPercentage", "must be a number")
		}
		if !finite(item.Quantity) || item.Quantity <= 0 {
			verr.Add(prefix+".quantity", "must be greater than zero")
		}

		if item.TempItemID == "" {
			continue
		}
		if !strings.HasPrefix(item.TempItemID, TemporaryIDPrefix) {
			verr.Add(prefix+".tempItemId", "must be a temporary id")
		} else if first, ok := seen[item.TempItemID]; ok {
			verr.Add(prefix+".tempItemId", fmt.Sprintf("duplicates items[%d]", first))
		} else {
			seen[item.TempItemID] = i
		}
	}

	if verr.HasErrors() {
		return verr
	}

	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
