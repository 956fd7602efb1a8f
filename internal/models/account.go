package models

import "time"

// Notification types.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification is a message shown to a user. Only the read flag ever changes.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Type      string    `json:"type" db:"type"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Preferences holds per-user display settings.
type Preferences struct {
	UserID             string     `json:"user_id,omitempty" db:"user_id"`
	DarkMode           bool       `json:"dark_mode" db:"dark_mode"`
	SidebarCollapsed   bool       `json:"sidebar_collapsed" db:"sidebar_collapsed"`
	EmailNotifications bool       `json:"email_notifications" db:"email_notifications"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DefaultPreferences returns the settings used before a user saves any.
func DefaultPreferences() Preferences {
	return Preferences{
		DarkMode:           true,
		SidebarCollapsed:   false,
		EmailNotifications: true,
	}
}

// SearchLog records one semantic search.
type SearchLog struct {
	UserID       string    `db:"user_id"`
	Query        string    `db:"query"`
	ResultsCount int       `db:"results_count"`
	CreatedAt    time.Time `db:"created_at"`
}

// UserStats is the dashboard summary for a user.
type UserStats struct {
	TotalNotes       int `json:"total_notes"`
	FavoritesCount   int `json:"favorites_count"`
	ArchivedCount    int `json:"archived_count"`
	SearchesThisWeek int `json:"searches_this_week"`
	AIInsights       int `json:"ai_insights"`
	Streak           int `json:"streak"`
}

// SearchResult is one ranked semantic search hit.
type SearchResult struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

// Answer is the AI-synthesized reply to a search together with its sources.
type Answer struct {
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}
