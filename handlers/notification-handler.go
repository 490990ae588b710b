package handlers

import (
	"net/http"
	"strconv"

	"indicator-project/tracking-service/events"
	"indicator-project/tracking-service/services"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	service *services.NotificationService
	hub     *events.Hub
}

func NewNotificationHandler(service *services.NotificationService, hub *events.Hub) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub}
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	skip, _ := strconv.Atoi(query.Get("skip"))
	unreadOnly := query.Get("unread") == "true"

	notifications, err := h.service.ListForUser(actor.ID, limit, skip, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.MarkRead(actor.ID, mux.Vars(r)["notificationID"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}

func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.Delete(actor.ID, mux.Vars(r)["notificationID"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

// Connect upgrades the request to a websocket registered under the caller.
func (h *NotificationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	actor, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.hub.ServeWS(w, r, actor.ID)
}
