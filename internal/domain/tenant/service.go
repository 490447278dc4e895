package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/cache"
	"github.com/carelink/agency/internal/platform/db"
)

// lookupTTL bounds how long a deactivated tenant can keep making requests.
const lookupTTL = time.Minute

type Service struct {
	repo  Repository
	cache cache.Cache
}

func NewService(repo Repository, c cache.Cache) *Service {
	return &Service{repo: repo, cache: c}
}

// Get returns a tenant by id, read through the cache.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.Key(id, "tenant", id), lookupTTL,
		func(ctx context.Context) (*Tenant, error) { return s.repo.GetByID(ctx, id) })
}

// GetCurrent returns the tenant the request is scoped to.
func (s *Service) GetCurrent(ctx context.Context) (*Tenant, error) {
	id := db.TenantFromContext(ctx)
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// TenantActive implements db.TenantLookup.
func (s *Service) TenantActive(ctx context.Context, id uuid.UUID) (bool, error) {
	t, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.Active, nil
}
