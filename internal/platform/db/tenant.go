package db

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type contextKey string

const TenantIDKey contextKey = "tenant_id"

// TenantLookup reports whether a tenant exists and is allowed to make requests.
type TenantLookup interface {
	TenantActive(ctx context.Context, id uuid.UUID) (bool, error)
}

type TenantConfig struct {
	Lookup        TenantLookup
	DefaultTenant string
	Skipper       echomw.Skipper
}

// TenantMiddleware resolves the tenant for each request and stores it on the
// request context. Every repository filters on it, so a request without a
// resolvable, active tenant never reaches a handler.
func TenantMiddleware(cfg TenantConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = echomw.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			raw := extractTenantID(c, cfg.DefaultTenant)
			if raw == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "tenant identifier is required")
			}
			tenantID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			if cfg.Lookup != nil {
				active, err := cfg.Lookup.TenantActive(ctx, tenantID)
				if err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "tenant resolution failed")
				}
				if !active {
					return echo.NewHTTPError(http.StatusForbidden, "tenant is not active")
				}
			}

			c.SetRequest(c.Request().WithContext(WithTenant(ctx, tenantID)))
			c.Set("tenant_id", tenantID.String())

			return next(c)
		}
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	// 1. JWT claim (set by auth middleware)
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}

	// 2. X-Tenant-ID header
	if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}

	return defaultTenant
}

// WithTenant returns a copy of ctx scoped to tenantID.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// TenantFromContext retrieves the tenant ID from context. It returns uuid.Nil
// when the request was not tenant-scoped.
func TenantFromContext(ctx context.Context) uuid.UUID {
	tid, _ := ctx.Value(TenantIDKey).(uuid.UUID)
	return tid
}
