package types

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() DraftEstimate {
	return DraftEstimate{
		Handle:      DraftHandle{TempID: "temp-1-abc"},
		ProjectName: "Kitchen remodel",
		CustomerID:  "CUS-000001",
		Items: []DraftLineItem{
			{Description: "Demo", ItemType: ItemTypeLabor, Cost: 100, MarkupPercentage: 20, Quantity: 2},
		},
	}
}

func TestValidate_ValidDraft(t *testing.T) {
	d := validDraft()
	assert.NoError(t, d.Validate())
}

func TestValidate_VendorAliasAccepted(t *testing.T) {
	d := validDraft()
	d.Items[0].ItemType = "vendor"
	assert.NoError(t, d.Validate())
	assert.Equal(t, ItemTypeMaterial, d.Items[0].ItemType.Normalize())
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	d := validDraft()
	d.ProjectName = "  "
	d.CustomerID = ""
	d.ContingencyPercentage = -1
	d.UseCustomLocation = true
	d.Items = append(d.Items, DraftLineItem{ItemType: "bogus", Cost: math.NaN(), Quantity: 0})

	err := d.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "projectName")
	assert.Contains(t, verr.Fields, "customerId")
	assert.Contains(t, verr.Fields, "contingencyPercentage")
	assert.Contains(t, verr.Fields, "location.address")
	assert.Contains(t, verr.Fields, "items[1].description")
	assert.Contains(t, verr.Fields, "items[1].itemType")
	assert.Contains(t, verr.Fields, "items[1].cost")
	assert.Contains(t, verr.Fields, "items[1].quantity")
	assert.NotContains(t, verr.Fields, "items[0].description")
}

func TestValidate_NewCustomerRequiresName(t *testing.T) {
	d := validDraft()
	d.CustomerID = ""
	d.NewCustomer = &NewCustomer{City: "Austin"}

	var verr *ValidationError
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Contains(t, verr.Fields, "newCustomer.customerName")
}

func TestValidate_DuplicateTempItemIDs(t *testing.T) {
	d := validDraft()
	d.Items[0].TempItemID = "temp-item-1"
	d.Items = append(d.Items, DraftLineItem{
		Description: "Tile", ItemType: ItemTypeMaterial, Cost: 10, Quantity: 1, TempItemID: "temp-item-1",
	})

	var verr *ValidationError
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "duplicates items[0]", verr.Fields["items[1].tempItemId"])
}

func TestValidate_PermanentIDsRejectedAsTemporary(t *testing.T) {
	d := validDraft()
	d.Handle.TempID = "EST-000001"
	d.Items[0].TempItemID = "ITEM-000001"

	var verr *ValidationError
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "must be a temporary id", verr.Fields["handle.tempId"])
	assert.Equal(t, "must be a temporary id", verr.Fields["items[0].tempItemId"])
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("b", "two")
	verr.Add("a", "one")
	assert.Equal(t, "invalid draft: a: one; b: two", verr.Error())
}
