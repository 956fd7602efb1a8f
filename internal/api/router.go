package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralos/internal/noteservice"
	"github.com/starford/neuralos/internal/notification"
	"github.com/starford/neuralos/internal/preference"
	"github.com/starford/neuralos/internal/search"
	"github.com/starford/neuralos/internal/stats"
)

// Deps are the services behind the API.
type Deps struct {
	Notes         *noteservice.Service
	Search        *search.Service
	Stats         *stats.Service
	Preferences   *preference.Service
	Notifications *notification.Service
	// Ready is pinged by /health/ready. Optional.
	Ready Pinger
	// Events, if non-nil, is mounted at GET /events.
	Events         http.Handler
	AllowedOrigins []string
}

// Handler holds API route handlers.
type Handler struct {
	notes         *noteservice.Service
	search        *search.Service
	stats         *stats.Service
	prefs         *preference.Service
	notifications *notification.Service
	ready         Pinger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		notes:         d.Notes,
		search:        d.Search,
		stats:         d.Stats,
		prefs:         d.Preferences,
		notifications: d.Notifications,
		ready:         d.Ready,
	}
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(standard(d.AllowedOrigins)...)

	r.Get("/health", h.Health)
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Delete("/trash/empty", h.EmptyTrash)
		r.Get("/{id}", h.GetNote)
		r.Patch("/{id}", h.UpdateNote)
		r.Delete("/{id}", h.DeleteNote)
		r.Post("/{id}/restore", h.RestoreNote)
		r.Post("/{id}/favorite", h.ToggleFavorite)
		r.Post("/{id}/archive", h.ToggleArchive)
	})

	r.Get("/search", h.Search)
	r.Get("/stats", h.Stats)

	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.UpdatePreferences)

	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications", h.CreateNotification)
	r.Patch("/notifications/read-all", h.MarkAllNotificationsRead)
	r.Patch("/notifications/{id}/read", h.MarkNotificationRead)

	r.Post("/save-note", h.LegacySaveNote)
	r.Get("/search-notes", h.LegacySearchNotes)

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}
	return r
}
