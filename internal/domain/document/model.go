package document

import (
	"time"

	"github.com/google/uuid"
)

// MaxUploadBytes caps a single document upload.
const MaxUploadBytes = 25 << 20

type OCRStatus string

const (
	OCRPending    OCRStatus = "pending"
	OCRProcessing OCRStatus = "processing"
	OCRCompleted  OCRStatus = "completed"
	OCRFailed     OCRStatus = "failed"
)

func (s OCRStatus) Valid() bool {
	switch s {
	case OCRPending, OCRProcessing, OCRCompleted, OCRFailed:
		return true
	}
	return false
}

type Document struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	ChartID     *uuid.UUID `db:"chart_id" json:"chart_id,omitempty"`
	FileName    string     `db:"file_name" json:"file_name"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	StoragePath string     `db:"storage_path" json:"-"`
	URL         string     `db:"url" json:"url"`
	OCRStatus   *OCRStatus `db:"ocr_status" json:"ocr_status,omitempty"`
	UploadedBy  *uuid.UUID `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type UploadInput struct {
	FileName string
	MimeType string
	Data     []byte
	ChartID  *uuid.UUID
}

// ListFilter selects documents of one chart, or only unattached ones.
type ListFilter struct {
	ChartID    *uuid.UUID
	Unassigned bool
}

// DeleteResult reports a delete whose metadata removal succeeded. The stored
// object may have survived; StorageRemoved says so.
type DeleteResult struct {
	DocumentID     uuid.UUID `json:"document_id"`
	StorageRemoved bool      `json:"storage_removed"`
	StorageError   string    `json:"storage_error,omitempty"`
}

type SignedURL struct {
	URL       string     `json:"url"`
	Signed    bool       `json:"signed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Orphan is a stored object whose document row is gone but whose removal
// from the object store failed.
type Orphan struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	DocumentID  uuid.UUID `json:"document_id"`
	StoragePath string    `json:"storage_path"`
	Error       string    `json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}
