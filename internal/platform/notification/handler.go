package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the admin-facing notification endpoints.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes mounts notification endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
	g.POST("/notifications/:id/retry", h.Retry)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"by_status":         h.dispatcher.Stats(),
		"pending_reminders": h.dispatcher.PendingReminders(),
	})
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.dispatcher.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Retry(c echo.Context) error {
	if err := h.dispatcher.Retry(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, _ := h.dispatcher.Get(c.Param("id"))
	return c.JSON(http.StatusOK, n)
}
