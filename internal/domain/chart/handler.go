package chart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/agency/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read and chart authoring – every agency role
	staff := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin, auth.RoleScheduler, auth.RoleClinician))
	staff.GET("/charts", h.ListCharts)
	staff.GET("/charts/:id", h.GetChart)
	staff.GET("/charts/:id/history", h.History)
	staff.GET("/charts/:id/medications", h.ListMedications)
	staff.POST("/charts", h.CreateChart)
	staff.POST("/charts/:id/medications", h.AddMedication)

	// Review workflow – admins and schedulers
	review := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin, auth.RoleScheduler))
	review.POST("/charts/approve", h.ApproveCharts)
	review.POST("/charts/:id/return", h.ReturnToClinician)
	review.POST("/charts/:id/reassign", h.ReassignClinician)
	review.POST("/charts/:id/reopen", h.ReopenChart)
	review.POST("/charts/:id/deliver", h.DeliverChart)
	review.POST("/charts/:id/archive", h.ArchiveChart)
}

func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrChartLocked), errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid chart id")
	}
	return id, nil
}

func (h *Handler) ListCharts(c echo.Context) error {
	var includeArchived bool
	if raw := c.QueryParam("include_archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "include_archived must be true or false")
		}
		includeArchived = v
	}
	list, err := h.svc.ListCharts(c.Request().Context(), includeArchived)
	if err != nil {
		return httpError(err)
	}
	if list == nil {
		list = []*Summary{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetChart(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	chart, err := h.svc.GetChart(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

type createRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Source    Source    `json:"source"`
}

func (h *Handler) CreateChart(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	chart, err := h.svc.CreateChart(c.Request().Context(), req.PatientID, req.Source)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chart)
}

type approveRequest struct {
	ChartIDs []uuid.UUID `json:"chart_ids"`
}

type approveResponse struct {
	Results   []BatchResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// ApproveCharts answers 200 when every chart was approved and 207 when some
// were not; the body lists each outcome either way.
func (h *Handler) ApproveCharts(c echo.Context) error {
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	results, err := h.svc.ApproveCharts(c.Request().Context(), req.ChartIDs)
	if err != nil {
		return httpError(err)
	}

	resp := approveResponse{Results: results}
	for _, r := range results {
		if r.Result == ResultSucceeded {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, resp)
}

type reasonRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// text accepts either field; the return action calls it a note.
func (r reasonRequest) text() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Note
}

func (h *Handler) withReason(c echo.Context, fn func(id uuid.UUID, reason string) (*Chart, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	chart, err := fn(id, req.text())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) ReturnToClinician(c echo.Context) error {
	return h.withReason(c, func(id uuid.UUID, note string) (*Chart, error) {
		return h.svc.ReturnToClinician(c.Request().Context(), id, note)
	})
}

func (h *Handler) ReopenChart(c echo.Context) error {
	return h.withReason(c, func(id uuid.UUID, reason string) (*Chart, error) {
		return h.svc.ReopenChart(c.Request().Context(), id, reason)
	})
}

func (h *Handler) ArchiveChart(c echo.Context) error {
	return h.withReason(c, func(id uuid.UUID, reason string) (*Chart, error) {
		return h.svc.ArchiveChart(c.Request().Context(), id, reason)
	})
}

func (h *Handler) DeliverChart(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	chart, err := h.svc.DeliverChart(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

type reassignRequest struct {
	ClinicianID uuid.UUID `json:"clinician_id"`
}

func (h *Handler) ReassignClinician(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reassignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	chart, err := h.svc.ReassignClinician(c.Request().Context(), id, req.ClinicianID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) History(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	history, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if history == nil {
		history = []*Transition{}
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) AddMedication(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.AddMedication(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	meds, err := h.svc.ListMedications(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if meds == nil {
		meds = []*Medication{}
	}
	return c.JSON(http.StatusOK, meds)
}
