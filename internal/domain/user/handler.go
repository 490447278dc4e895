package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/agency/internal/platform/auth"
	"github.com/carelink/agency/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public: reached with an activation code, before the user has an account.
	api.POST("/invitations/activate", h.ActivateInvitation)

	// Read endpoints – admins and schedulers pick clinicians for reassignment
	staff := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin, auth.RoleScheduler))
	staff.GET("/clinicians", h.ListActiveClinicians)

	// User administration – agency admin only
	admin := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin))
	admin.POST("/invitations", h.CreateInvitation)
	admin.GET("/invitations", h.ListInvitations)
	admin.POST("/invitations/:id/resend", h.ResendInvitation)
	admin.POST("/invitations/:id/revoke", h.RevokeInvitation)
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:id", h.GetUser)
	admin.POST("/users/:id/toggle-active", h.ToggleUserActive)
}

// httpError maps service errors onto HTTP statuses. Anything unrecognised is
// returned as is and rendered as a 500 by the error handler.
func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvitationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbiddenRole):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrDuplicateInvitation), errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvitationNotPending), errors.Is(err, ErrSelfDeactivation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvitationExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	}
	return err
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Invitation Handlers --

func (h *Handler) CreateInvitation(c echo.Context) error {
	var in CreateInvitationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inv, err := h.svc.CreateInvitation(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListInvitations(c echo.Context) error {
	p := pagination.FromContext(c)
	invs, total, err := h.svc.ListInvitations(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invs, total, p))
}

func (h *Handler) ResendInvitation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.ResendInvitation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) RevokeInvitation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.RevokeInvitation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ActivateInvitation(c echo.Context) error {
	var in ActivateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.ActivateInvitation(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

// -- User Handlers --

func (h *Handler) ListUsers(c echo.Context) error {
	var f UserFilter
	if raw := c.QueryParam("role"); raw != "" {
		role := auth.Role(raw)
		if !role.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
		}
		f.Role = &role
	}
	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "active must be true or false")
		}
		f.Active = &active
	}

	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ToggleUserActive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.ToggleUserActive(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListActiveClinicians(c echo.Context) error {
	users, err := h.svc.ListActiveClinicians(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if users == nil {
		users = []*User{}
	}
	return c.JSON(http.StatusOK, users)
}
