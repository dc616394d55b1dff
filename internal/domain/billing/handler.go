package billing

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curamed/curamed/internal/domain/hospital"
	"github.com/curamed/curamed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the billing endpoints on the admin group.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/billing/aggregate", h.Aggregate)
	admin.POST("/invoices", h.GenerateInvoice)
	admin.GET("/invoices", h.ListInvoices)
	admin.GET("/invoices/:id", h.GetInvoice)
	admin.PATCH("/invoices/:id/status", h.UpdateStatus)
	admin.POST("/invoices/:id/send", h.SendInvoice)
	admin.GET("/invoices/:id/pdf", h.InvoicePDF)
}

type aggregateRequest struct {
	HospitalID *uuid.UUID `json:"hospital_id"`
	Start      string     `json:"start"`
	End        string     `json:"end"`
}

func (h *Handler) Aggregate(c echo.Context) error {
	var req aggregateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, end, err := parsePeriod(req.Start, req.End)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.Aggregate(c.Request().Context(), AggregateParams{
		HospitalID: req.HospitalID,
		Start:      start,
		End:        end,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

type generateRequest struct {
	HospitalID uuid.UUID `json:"hospital_id"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
}

func (h *Handler) GenerateInvoice(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.HospitalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id is required")
	}
	start, end, err := parsePeriod(req.Start, req.End)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.GenerateInvoice(c.Request().Context(), req.HospitalID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPeriod):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicateInvoice):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, hospital.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "hospital not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := InvoiceFilter{Status: c.QueryParam("status")}
	if raw := c.QueryParam("hospital_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
		}
		filter.HospitalID = &id
	}
	invs, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NamedResponse("invoices", invs, total, pg))
}

func (h *Handler) GetInvoice(c echo.Context) error {
	inv, err := h.fetch(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status != StatusPending && req.Status != StatusSent && req.Status != StatusPaid {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status: "+req.Status)
	}
	inv, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		case errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) SendInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.MarkSent(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		case errors.Is(err, ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) InvoicePDF(c echo.Context) error {
	inv, err := h.fetch(c)
	if err != nil {
		return err
	}
	pdf, err := RenderPDF(inv.Invoice)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+inv.Number+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) fetch(c echo.Context) (*InvoiceView, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return inv, nil
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start date, expected YYYY-MM-DD")
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end date, expected YYYY-MM-DD")
	}
	// Make the end bound inclusive of the whole day.
	return s, e.Add(24*time.Hour - time.Nanosecond), nil
}
