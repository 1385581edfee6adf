package handlers

import (
	"net/http"

	"ordersync/internal/services"
	"ordersync/pkg/logger"

	"github.com/labstack/echo/v4"
)

// NotificationHandler exposes the in-memory notification store and the
// user-interaction signal to the UI layer.
type NotificationHandler struct {
	store  *services.NotificationStore
	alerts *services.AlertManager
	log    logger.Logger
}

func NewNotificationHandler(store *services.NotificationStore, alerts *services.AlertManager,
	log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		store:  store,
		alerts: alerts,
		log:    log,
	}
}

func (h *NotificationHandler) Register(g *echo.Group) {
	g.GET("/notifications", h.ListNotifications)
	g.GET("/notifications/unread-count", h.UnreadCount)
	g.POST("/notifications/:id/read", h.MarkRead)
	g.POST("/notifications/read-all", h.MarkAllRead)
	g.DELETE("/notifications", h.Clear)
	g.POST("/interaction", h.ReportInteraction)
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": h.store.List(),
		"unread_count":  h.store.UnreadCount(),
	})
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{
		"unread_count": h.store.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id := c.Param("id")
	if !h.store.MarkRead(id) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	h.store.MarkAllRead()
	return c.JSON(http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}

func (h *NotificationHandler) Clear(c echo.Context) error {
	h.store.Clear()
	return c.JSON(http.StatusOK, map[string]string{"message": "Notifications cleared"})
}

// ReportInteraction is called by the UI on the first pointer, keyboard
// or touch signal. It flushes gated alerts; a flush failure is reported
// in the response but never as a server error.
func (h *NotificationHandler) ReportInteraction(c echo.Context) error {
	if err := h.alerts.FlushPending(); err != nil {
		h.log.Error("Failed to flush pending alerts", "error", err)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"flushed": false,
			"error":   "some alerts could not start",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"flushed": true})
}
