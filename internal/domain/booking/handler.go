package booking

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doctoc/doctoc/internal/platform/auth"
)

// Handler exposes booking sessions over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	s := g.Group("/booking/sessions")
	s.POST("", h.CreateSession)
	s.GET("/:id", h.GetSession)
	s.DELETE("/:id", h.DeleteSession)
	s.POST("/:id/authenticate", h.Authenticate)
	s.GET("/:id/dates", h.ListDates)
	s.PUT("/:id/date", h.SelectDate)
	s.GET("/:id/slots", h.ListSlots)
	s.PUT("/:id/time", h.SelectTime)
	s.GET("/:id/types", h.ListTypes)
	s.PUT("/:id/type", h.SelectType)
	s.PUT("/:id/motive", h.SetMotive)
	s.POST("/:id/next", h.Next)
	s.POST("/:id/back", h.Back)
	s.GET("/:id/summary", h.GetSummary)
	s.POST("/:id/submit", h.Submit)
	s.POST("/:id/reset", h.Reset)
}

type createSessionRequest struct {
	DoctorID string `json:"doctor_id"`
}

type dateRequest struct {
	Date string `json:"date"`
}

type timeRequest struct {
	Time string `json:"time"`
}

type typeRequest struct {
	TypeID string `json:"type_id"`
}

type motiveRequest struct {
	Motive string `json:"motive"`
}

func currentUser(c echo.Context) *User {
	u, ok := auth.UserFromContext(c.Request().Context())
	if !ok {
		return nil
	}
	return &User{ID: u.ID, Email: u.Email, Name: u.Name}
}

// -- Session --

func (h *Handler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.StartSession(c.Request().Context(), req.DoctorID, currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetSession(c echo.Context) error {
	v, err := h.svc.Session(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.svc.EndSession(c.Request().Context(), c.Param("id"), currentUser(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Authenticate(c echo.Context) error {
	u := currentUser(c)
	if u == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, ErrNotAuthenticated.Error())
	}
	v, err := h.svc.Authenticate(c.Request().Context(), c.Param("id"), *u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Date and time --

func (h *Handler) ListDates(c echo.Context) error {
	dates, err := h.svc.Dates(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"dates": dates})
}

func (h *Handler) SelectDate(c echo.Context) error {
	var req dateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	v, err := h.svc.SelectDate(c.Request().Context(), c.Param("id"), currentUser(c), req.Date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListSlots(c echo.Context) error {
	v, err := h.svc.Slots(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) SelectTime(c echo.Context) error {
	var req timeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Time == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "time is required")
	}
	v, err := h.svc.SelectTime(c.Request().Context(), c.Param("id"), currentUser(c), req.Time)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Type and motive --

func (h *Handler) ListTypes(c echo.Context) error {
	types, err := h.svc.Types(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"types": types})
}

func (h *Handler) SelectType(c echo.Context) error {
	var req typeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TypeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type_id is required")
	}
	v, err := h.svc.SelectType(c.Request().Context(), c.Param("id"), currentUser(c), req.TypeID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) SetMotive(c echo.Context) error {
	var req motiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.SetMotive(c.Request().Context(), c.Param("id"), currentUser(c), req.Motive)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Navigation --

func (h *Handler) Next(c echo.Context) error {
	v, err := h.svc.Next(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Back(c echo.Context) error {
	v, err := h.svc.Back(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Reset(c echo.Context) error {
	v, err := h.svc.Reset(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// -- Summary and submission --

func (h *Handler) GetSummary(c echo.Context) error {
	s, err := h.svc.Summary(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Submit(c echo.Context) error {
	v, err := h.svc.Submit(c.Request().Context(), c.Param("id"), currentUser(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

// httpError maps booking errors to HTTP statuses. Validation failures on a
// step gate are 422; malformed input is 400.
func httpError(err error) error {
	var se *SubmissionError
	switch {
	case errors.As(err, &se):
		switch {
		case errors.Is(se.Kind, ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, se.Error())
		case se.Rejected:
			return echo.NewHTTPError(http.StatusConflict, se.Error())
		default:
			return echo.NewHTTPError(http.StatusBadGateway, se.Error())
		}
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrWrongUser):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSubmitInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, ErrUpstream.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
