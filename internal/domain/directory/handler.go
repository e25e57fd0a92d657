package directory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doctoc/doctoc/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/:id", h.GetDoctor)
	g.GET("/doctors/:id/appointment-types", h.ListTypes)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	doctors, err := h.svc.Search(c.Request().Context(), Filter{
		Query:     c.QueryParam("q"),
		Specialty: c.QueryParam("specialty"),
	})
	if err != nil {
		return httpError(err)
	}
	start, end := pg.Bounds(len(doctors))
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors[start:end], len(doctors), pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListTypes(c echo.Context) error {
	types, err := h.svc.Types(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, types)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, ErrUpstream.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
