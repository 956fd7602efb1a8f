// Package models defines the domain types for NeuralOS.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultNoteTitle is used when a note is created without a title.
const DefaultNoteTitle = "Untitled Note"

// Filter types accepted by note listings.
const (
	FilterAll       = "all"
	FilterFavorites = "favorites"
	FilterArchived  = "archived"
	FilterTrash     = "trash"
)

// Note is the canonical record of a user note.
type Note struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	Tags       Tags      `json:"tags" db:"tags"`
	IsFavorite bool      `json:"is_favorite" db:"is_favorite"`
	IsArchived bool      `json:"is_archived" db:"is_archived"`
	IsDeleted  bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	// EmbeddedChecksum is the checksum of the embedding input last pushed
	// to the vector index. Empty when the note was never indexed.
	EmbeddedChecksum string `json:"-" db:"embedded_checksum"`
}

// EmbeddingInput returns the text that represents the note in the vector index.
func (n *Note) EmbeddingInput() string {
	return n.Title + " " + n.Content
}

// NotePatch carries the fields of a partial update. Nil fields are left untouched.
type NotePatch struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags"`
	IsFavorite *bool     `json:"is_favorite"`
	IsArchived *bool     `json:"is_archived"`
	IsDeleted  *bool     `json:"is_deleted"`
}

// ListQuery selects notes for a listing.
type ListQuery struct {
	UserID     string
	FilterType string
	Search     string
	Limit      int
	Offset     int
}

// Tags is a string set stored as a JSON array.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("models: cannot scan %T into Tags", src)
	}
	if strings.TrimSpace(string(raw)) == "" {
		*t = Tags{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models: decode tags: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*t = out
	return nil
}

// MarshalJSON keeps an empty tag set as [] instead of null.
func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}
