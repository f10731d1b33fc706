package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/easyapt/easyapt/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/profile/me", h.GetMine)
	api.PUT("/profile/me", h.UpsertMine)
}

func (h *Handler) GetMine(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	profile, err := h.svc.GetProfile(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) UpsertMine(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())

	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.svc.UpsertProfile(c.Request().Context(), userID, &p)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}
