package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/notification"
)

var statusSuccess = StatusResponse{Status: "success"}

// GetPreferences handles GET /preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.prefs.Get(r.Context(), uid))
}

// UpdatePreferences handles PUT /preferences.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	req := newPreferencesRequest()
	if !decodeJSON(w, r, req) {
		return
	}
	saved, err := h.prefs.Update(r.Context(), uid, models.Preferences{
		DarkMode:           req.DarkMode,
		SidebarCollapsed:   req.SidebarCollapsed,
		EmailNotifications: req.EmailNotifications,
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "preferences": saved})
}

// ListNotifications handles GET /notifications. Failures yield an empty list.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	unread, ok := boolParam(w, r, "unread_only")
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit", notification.DefaultLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.notifications.List(r.Context(), uid, unread, limit))
}

// CreateNotification handles POST /notifications.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.notifications.Create(r.Context(), notification.CreateInput{
		UserID:  req.UserID,
		Title:   req.Title,
		Message: req.Message,
		Type:    req.Type,
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkNotificationRead handles PATCH /notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), uid); err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, statusSuccess)
}

// MarkAllNotificationsRead handles PATCH /notifications/read-all.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.notifications.MarkAllRead(r.Context(), uid); err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, statusSuccess)
}
