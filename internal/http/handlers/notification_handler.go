package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNotifications godoc
// @ID          listNotifications
// @Summary     Live notifications
// @Description Returns the notifications that have not expired or been dismissed, oldest first.
// @Tags        Notifications
// @Produce     json
// @Success     200  {array}  domain.Notification
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	if h.d.Notifications == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "notifications unavailable")
		return
	}
	ok(c, http.StatusOK, h.d.Notifications.List())
}

// DismissNotification godoc
// @ID          dismissNotification
// @Summary     Dismiss a notification
// @Tags        Notifications
// @Param       id  path  string  true  "Notification ID"
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Already gone"
// @Router      /notifications/{id} [delete]
func (h *Handlers) DismissNotification(c *gin.Context) {
	if h.d.Notifications == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "notifications unavailable")
		return
	}
	if !h.d.Notifications.Dismiss(c.Param("id")) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		return
	}
	noContent(c)
}
