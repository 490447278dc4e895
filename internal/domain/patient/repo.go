package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// List filters by a case-insensitive substring of first or last name
	// when name is non-empty.
	List(ctx context.Context, tenantID uuid.UUID, name string, limit, offset int) ([]*Patient, int, error)
}
