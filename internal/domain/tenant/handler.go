package tenant

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the tenant routes. Every authenticated role may read
// its own tenant.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/tenant", h.GetCurrent)
}

func (h *Handler) GetCurrent(c echo.Context) error {
	t, err := h.svc.GetCurrent(c.Request().Context())
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "tenant not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}
