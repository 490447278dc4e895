package tenant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("tenant not found")

// Tenant is an agency. Tenants are provisioned out of band; this service
// only reads them.
type Tenant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
