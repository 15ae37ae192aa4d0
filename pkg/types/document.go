package types

import "time"

type EntityType string

const (
	EntityTypeEstimate     EntityType = "ESTIMATE"
	EntityTypeEstimateItem EntityType = "ESTIMATE_ITEM"
)

func (t EntityType) Valid() bool {
	return t == EntityTypeEstimate || t == EntityTypeEstimateItem
}

// Document is a file attached to an estimate or one of its items.
// EntityID holds a temporary id until reconciliation rewrites it.
type Document struct {
	ID            string     `db:"document_id" json:"documentId"`
	EntityType    EntityType `db:"entity_type" json:"entityType"`
	EntityID      string     `db:"entity_id" json:"entityId"`
	FileName      string     `db:"file_name" json:"fileName"`
	FileSizeBytes int64      `db:"file_size_bytes" json:"fileSizeBytes"`
	MimeType      string     `db:"mime_type" json:"mimeType"`
	StorageKey    string     `db:"storage_path" json:"storagePath"`
	UploadedAt    time.Time  `db:"uploaded_at" json:"uploadedAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// DocumentUploadForm carries the non-file fields of a document upload
type DocumentUploadForm struct {
	EntityType EntityType `form:"entity_type"`
	EntityID   string     `form:"entity_id"`
}
