package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/agency/internal/platform/cache"
	"github.com/carelink/agency/internal/platform/db"
)

type mockRepo struct {
	tenants map[uuid.UUID]*Tenant
	calls   int
	err     error
}

func newMockRepo(ts ...*Tenant) *mockRepo {
	m := &mockRepo{tenants: make(map[uuid.UUID]*Tenant)}
	for _, t := range ts {
		m.tenants[t.ID] = t
	}
	return m
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func TestTenantActive(t *testing.T) {
	active := &Tenant{ID: uuid.New(), Name: "Sunrise Home Health", Slug: "sunrise", Active: true}
	inactive := &Tenant{ID: uuid.New(), Name: "Closed Agency", Slug: "closed"}
	svc := NewService(newMockRepo(active, inactive), cache.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name string
		id   uuid.UUID
		want bool
	}{
		{"active", active.ID, true},
		{"inactive", inactive.ID, false},
		{"unknown", uuid.New(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.TenantActive(ctx, tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("TenantActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTenantActive_RepoError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection reset")
	svc := NewService(repo, nil)

	if _, err := svc.TenantActive(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestGet_Cached(t *testing.T) {
	tn := &Tenant{ID: uuid.New(), Name: "A", Active: true}
	repo := newMockRepo(tn)
	svc := NewService(repo, cache.NewMemory())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Get(ctx, tn.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if repo.calls != 1 {
		t.Errorf("expected 1 repository call, got %d", repo.calls)
	}
}

func TestGetCurrent(t *testing.T) {
	tn := &Tenant{ID: uuid.New(), Name: "A", Active: true}
	svc := NewService(newMockRepo(tn), nil)

	if _, err := svc.GetCurrent(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound without tenant, got %v", err)
	}

	got, err := svc.GetCurrent(db.WithTenant(context.Background(), tn.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "A" {
		t.Errorf("unexpected tenant %+v", got)
	}
}

func TestHandler_GetCurrent(t *testing.T) {
	tn := &Tenant{ID: uuid.New(), Name: "A", Active: true}
	h := NewHandler(NewService(newMockRepo(tn), nil))
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenant", nil)
	req = req.WithContext(db.WithTenant(req.Context(), tn.ID))
	rec := httptest.NewRecorder()
	if err := h.GetCurrent(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tenant", nil)
	err := h.GetCurrent(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
