package api

import (
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/neuralos/internal/models"
)

const maxBodyBytes = 10 << 20

type validatable interface {
	Validate() error
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   *string  `json:"title" example:"Groceries"`
	Content *string  `json:"content" example:"milk, eggs" validate:"required"`
	UserID  string   `json:"user_id" example:"user-1" validate:"required"`
	Tags    []string `json:"tags"`
}

// Validate implements validation.Validatable.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.NotNil),
		validation.Field(&r.UserID, validation.Required),
	)
}

// UpdateNoteRequest is a partial note update. Absent fields are untouched.
type UpdateNoteRequest struct {
	models.NotePatch
}

// Validate implements validation.Validatable.
func (r *UpdateNoteRequest) Validate() error { return nil }

// PreferencesRequest carries all preference flags. Absent flags take defaults.
type PreferencesRequest struct {
	DarkMode           bool `json:"dark_mode"`
	SidebarCollapsed   bool `json:"sidebar_collapsed"`
	EmailNotifications bool `json:"email_notifications"`
}

func newPreferencesRequest() *PreferencesRequest {
	d := models.DefaultPreferences()
	return &PreferencesRequest{
		DarkMode:           d.DarkMode,
		SidebarCollapsed:   d.SidebarCollapsed,
		EmailNotifications: d.EmailNotifications,
	}
}

// Validate implements validation.Validatable.
func (r *PreferencesRequest) Validate() error { return nil }

// CreateNotificationRequest is the request body for a new notification.
type CreateNotificationRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" example:"info"`
}

// Validate implements validation.Validatable.
func (r *CreateNotificationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Message, validation.Required),
		validation.Field(&r.Type, validation.In(
			models.NotificationInfo, models.NotificationSuccess,
			models.NotificationWarning, models.NotificationError)),
	)
}

// LegacySaveRequest is the body of POST /save-note.
type LegacySaveRequest struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	UserID  string   `json:"user_id"`
	Tags    []string `json:"tags"`
}

// Validate implements validation.Validatable.
func (r *LegacySaveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.NotNil),
		validation.Field(&r.UserID, validation.Required),
	)
}

// StatusResponse is the generic acknowledgement body.
type StatusResponse struct {
	Status string `json:"status" example:"success"`
	NoteID string `json:"note_id,omitempty"`
}

// LegacySearchResult is one hit of GET /search-notes.
type LegacySearchResult struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// LegacySearchResponse is the body of GET /search-notes.
type LegacySearchResponse struct {
	Answer  string               `json:"answer"`
	Results []LegacySearchResult `json:"results"`
}

// HealthResponse is the static body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// userID returns the required user_id query parameter. A missing value
// writes a 422 and reports false.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("user_id")
	if id == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query parameter 'user_id' is required"))
		return "", false
	}
	return id, true
}

// intParam parses an optional integer query parameter.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query parameter '"+name+"' must be an integer"))
		return 0, false
	}
	return n, true
}

// boolParam parses an optional boolean query parameter.
func boolParam(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	b, ok := parseFlag(raw)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query parameter '"+name+"' must be a boolean"))
		return false, false
	}
	return b, true
}

// parseFlag accepts the spellings Python web frameworks take for booleans.
func parseFlag(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "1", "t", "true", "y", "yes", "on":
		return true, true
	case "0", "f", "false", "n", "no", "off":
		return false, true
	}
	return false, false
}
