package document

import (
	"errors"
	"io"
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
	staff := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin, auth.RoleScheduler, auth.RoleClinician))
	staff.POST("/documents", h.Upload)
	staff.GET("/documents", h.List)
	staff.GET("/documents/:id", h.Get)
	staff.GET("/documents/:id/url", h.SignedURL)

	manage := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin, auth.RoleScheduler))
	manage.POST("/documents/:id/attach", h.Attach)
	manage.POST("/documents/:id/detach", h.Detach)
	manage.DELETE("/documents/:id", h.Delete)

	// OCR worker callback
	admin := api.Group("", auth.RequireRole(auth.RoleAgencyAdmin))
	admin.PUT("/documents/:id/ocr-status", h.UpdateOCRStatus)
}

func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrChartNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrOCRNotTracked), errors.Is(err, ErrChartLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSignedURLDisabled):
		return echo.NewHTTPError(http.StatusBadGateway, ErrSignedURLDisabled.Error())
	}
	return err
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	return id, nil
}

func parseChartID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid chart_id")
	}
	return &id, nil
}

// Upload accepts a multipart form with a "file" part and an optional
// "chart_id" field.
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > MaxUploadBytes {
		return httpError(ErrTooLarge)
	}
	chartID, err := parseChartID(c.FormValue("chart_id"))
	if err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable file")
	}

	doc, err := h.svc.Upload(c.Request().Context(), UploadInput{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
		ChartID:  chartID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c echo.Context) error {
	var f ListFilter
	chartID, err := parseChartID(c.QueryParam("chart_id"))
	if err != nil {
		return err
	}
	f.ChartID = chartID
	if raw := c.QueryParam("unassigned"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unassigned must be true or false")
		}
		f.Unassigned = v
	}
	if f.ChartID != nil && f.Unassigned {
		return echo.NewHTTPError(http.StatusBadRequest, "chart_id and unassigned are mutually exclusive")
	}

	p := pagination.FromContext(c)
	docs, total, err := h.svc.List(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(docs, total, p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) SignedURL(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.SignedURL(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

type attachRequest struct {
	ChartID uuid.UUID `json:"chart_id"`
}

func (h *Handler) Attach(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req attachRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	doc, err := h.svc.Attach(c.Request().Context(), id, req.ChartID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) Detach(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Detach(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type ocrStatusRequest struct {
	Status OCRStatus `json:"status"`
}

func (h *Handler) UpdateOCRStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ocrStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	doc, err := h.svc.UpdateOCRStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}
