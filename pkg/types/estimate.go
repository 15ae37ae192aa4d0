package types

import (
	"time"
)

type EstimateStatus string

const (
	EstimateStatusDraft            EstimateStatus = "draft"
	EstimateStatusSent             EstimateStatus = "sent"
	EstimateStatusAwaitingApproval EstimateStatus = "awaiting_approval"
	EstimateStatusApproved         EstimateStatus = "approved"
)

func (s EstimateStatus) Valid() bool {
	switch s {
	case EstimateStatusDraft, EstimateStatusSent, EstimateStatusAwaitingApproval, EstimateStatusApproved:
		return true
	}
	return false
}

type ItemType string

const (
	ItemTypeLabor         ItemType = "labor"
	ItemTypeMaterial      ItemType = "material"
	ItemTypeSubcontractor ItemType = "subcontractor"
	ItemTypeFee           ItemType = "fee"
	ItemTypeOther         ItemType = "other"
)

// Normalize maps the legacy "vendor" spelling onto material. The result
// is not guaranteed to be valid.
func (t ItemType) Normalize() ItemType {
	if t == "vendor" {
		return ItemTypeMaterial
	}
	return t
}

func (t ItemType) Valid() bool {
	switch t.Normalize() {
	case ItemTypeLabor, ItemTypeMaterial, ItemTypeSubcontractor, ItemTypeFee, ItemTypeOther:
		return true
	}
	return false
}

// Location is the job site address stored on an estimate
type Location struct {
	Address string `db:"site_address" json:"address"`
	City    string `db:"site_city" json:"city"`
	State   string `db:"site_state" json:"state"`
	Zip     string `db:"site_zip" json:"zip"`
}

// DraftEstimate is the client-held estimate being edited. It is never
// persisted as-is; the submission pipeline turns it into rows.
type DraftEstimate struct {
	Handle DraftHandle `json:"handle"`

	ProjectName    string `json:"projectName"`
	JobDescription string `json:"jobDescription"`

	CustomerID  string       `json:"customerId,omitempty"`
	NewCustomer *NewCustomer `json:"newCustomer,omitempty"`

	UseCustomLocation bool     `json:"useCustomLocation"`
	Location          Location `json:"location"`

	ContingencyPercentage float64         `json:"contingencyPercentage"`
	Items                 []DraftLineItem `json:"items"`
	DocumentIDs           []string        `json:"documentIds,omitempty"`
}

type DraftLineItem struct {
	Description      string   `json:"description"`
	ItemType         ItemType `json:"itemType"`
	Cost             float64  `json:"cost"`
	MarkupPercentage float64  `json:"markupPercentage"`
	Quantity         float64  `json:"quantity"`

	VendorID        *string `json:"vendorId,omitempty"`
	SubcontractorID *string `json:"subcontractorId,omitempty"`
	DocumentID      *string `json:"documentId,omitempty"`

	// TempItemID correlates documents uploaded against this item before
	// the item had a permanent id.
	TempItemID string `json:"tempItemId,omitempty"`
}

type Estimate struct {
	ID             string `db:"estimateid" json:"estimateId"`
	CustomerID     string `db:"customerid" json:"customerId"`
	ProjectName    string `db:"projectname" json:"projectName"`
	JobDescription string `db:"job_description" json:"jobDescription"`

	Location

	Status                EstimateStatus `db:"status" json:"status"`
	ContingencyPercentage float64        `db:"contingency_percentage" json:"contingencyPercentage"`
	EstimateAmount        float64        `db:"estimateamount" json:"estimateAmount"`
	ContingencyAmount     float64        `db:"contingencyamount" json:"contingencyAmount"`
	CreatedAt             time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updatedAt"`
}

type EstimateRevision struct {
	ID                string         `db:"id" json:"id"`
	EstimateID        string         `db:"estimate_id" json:"estimateId"`
	Version           int            `db:"version" json:"version"`
	IsSelectedForView bool           `db:"is_selected_for_view" json:"isSelectedForView"`
	Status            EstimateStatus `db:"status" json:"status"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
}

// LineItem is a persisted estimate item. The derived price fields are a
// snapshot taken at insert time.
type LineItem struct {
	ID         string  `db:"id" json:"id"`
	EstimateID string  `db:"estimate_id" json:"estimateId"`
	RevisionID string  `db:"revision_id" json:"revisionId"`
	TempItemID *string `db:"temp_item_id" json:"tempItemId,omitempty"`
	Position   int     `db:"position" json:"position"`

	Description      string   `db:"description" json:"description"`
	ItemType         ItemType `db:"item_type" json:"itemType"`
	Cost             float64  `db:"cost" json:"cost"`
	MarkupPercentage float64  `db:"markup_percentage" json:"markupPercentage"`
	Quantity         float64  `db:"quantity" json:"quantity"`

	MarkupAmount          float64 `db:"markup_amount" json:"markupAmount"`
	UnitPrice             float64 `db:"unit_price" json:"unitPrice"`
	TotalPrice            float64 `db:"total_price" json:"totalPrice"`
	GrossMargin           float64 `db:"gross_margin" json:"grossMargin"`
	GrossMarginPercentage float64 `db:"gross_margin_percentage" json:"grossMarginPercentage"`

	VendorID        *string   `db:"vendor_id" json:"vendorId,omitempty"`
	SubcontractorID *string   `db:"subcontractor_id" json:"subcontractorId,omitempty"`
	DocumentID      *string   `db:"document_id" json:"documentId,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// InsertedLineItem is what the bulk insert echoes back for each row so
// callers can correlate temporary item ids with permanent ones.
type InsertedLineItem struct {
	ID         string  `db:"id"`
	TempItemID *string `db:"temp_item_id"`
	Position   int     `db:"position"`
}

// EstimateTotals are the figures written to the estimate row once the
// line items exist.
type EstimateTotals struct {
	Subtotal          float64 `json:"subtotal"`
	ContingencyAmount float64 `json:"contingencyAmount"`
	GrandTotal        float64 `json:"grandTotal"`
}
