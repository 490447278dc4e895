package patient

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/agency/internal/platform/cache"
	"github.com/carelink/agency/internal/platform/db"
)

var errNoTenant = errors.New("request has no tenant")

type Service struct {
	repo  Repository
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewService(repo Repository, c cache.Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl, now: time.Now}
}

// CacheKey is the cache entry for a patient. Other packages that change a
// patient row invalidate it.
func CacheKey(tenantID, id uuid.UUID) string {
	return cache.Key(tenantID, "patient", id)
}

func tenantOf(ctx context.Context) (uuid.UUID, error) {
	id := db.TenantFromContext(ctx)
	if id == uuid.Nil {
		return uuid.Nil, errNoTenant
	}
	return id, nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// apply validates in and copies it onto p.
func (s *Service) apply(p *Patient, in Input) error {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" {
		return &ValidationError{Field: "first_name", Message: "is required"}
	}
	if last == "" {
		return &ValidationError{Field: "last_name", Message: "is required"}
	}

	var dob *time.Time
	if raw := strings.TrimSpace(in.DateOfBirth); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return &ValidationError{Field: "date_of_birth", Message: "must be YYYY-MM-DD"}
		}
		if d.After(s.now()) {
			return &ValidationError{Field: "date_of_birth", Message: "is in the future"}
		}
		dob = &d
	}

	email := optional(strings.ToLower(in.Email))
	if email != nil {
		if addr, err := mail.ParseAddress(*email); err != nil || addr.Address != *email {
			return &ValidationError{Field: "email", Message: "is not a valid address"}
		}
	}

	p.FirstName = first
	p.LastName = last
	p.DateOfBirth = dob
	p.Address = optional(in.Address)
	p.Phone = optional(in.Phone)
	p.Email = email
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	p := &Patient{}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	p.TenantID = tenantID
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a patient of the request's tenant, read through the cache.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, CacheKey(tenantID, id), s.ttl,
		func(ctx context.Context) (*Patient, error) { return s.repo.GetByID(ctx, tenantID, id) })
}

// Exists reports whether id is a patient of the request's tenant.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) List(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, tenantID, name, limit, offset)
}

// Update replaces the demographics of a patient and drops its cache entry.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	p := &Patient{ID: id}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	tenantID, err := tenantOf(ctx)
	if err != nil {
		return nil, err
	}
	p.TenantID = tenantID
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	_ = cache.Invalidate(ctx, s.cache, CacheKey(tenantID, id))
	return p, nil
}
