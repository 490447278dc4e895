package document

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)
	List(ctx context.Context, tenantID uuid.UUID, f ListFilter, limit, offset int) ([]*Document, int, error)
	// SetChart changes only chart_id; nil detaches.
	SetChart(ctx context.Context, tenantID, id uuid.UUID, chartID *uuid.UUID) (*Document, error)
	SetOCRStatus(ctx context.Context, tenantID, id uuid.UUID, status OCRStatus) (*Document, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// OrphanRepository tracks stored objects that outlived their document row.
// Listing spans tenants; it backs the maintenance sweep.
type OrphanRepository interface {
	Record(ctx context.Context, o *Orphan) error
	List(ctx context.Context, limit int) ([]*Orphan, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChartDirectory answers chart lookups in the request's tenant. Locked is
// true for charts whose attachments may no longer change.
type ChartDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Locked(ctx context.Context, id uuid.UUID) (bool, error)
}

// Recorder is the subset of service metrics documents report to.
type Recorder interface {
	DocumentUploaded(ok bool)
	StorageOrphaned()
	OCRDispatched(ok bool)
}
