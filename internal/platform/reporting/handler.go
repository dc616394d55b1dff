package reporting

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With().Str("component", "reporting").Logger()}
}

// RegisterRoutes mounts the dashboard endpoints on the admin group.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	reports := admin.Group("/reports")
	reports.GET("/measures", h.ListMeasures)
	reports.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Measures())
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	report, err := h.svc.Evaluate(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrUnknownMeasure) {
			return echo.NewHTTPError(http.StatusNotFound, "measure not found")
		}
		h.logger.Error().Err(err).Str("measure", c.Param("id")).Msg("evaluate measure")
		return echo.NewHTTPError(http.StatusInternalServerError, "measure evaluation failed")
	}
	return c.JSON(http.StatusOK, report)
}
