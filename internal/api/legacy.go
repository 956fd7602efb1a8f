package api

import (
	"net/http"

	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/noteservice"
	"github.com/starford/neuralos/internal/search"
)

// LegacySaveNote handles POST /save-note, kept for older clients.
func (h *Handler) LegacySaveNote(w http.ResponseWriter, r *http.Request) {
	var req LegacySaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	title := models.DefaultNoteTitle
	if req.Title != nil {
		title = *req.Title
	}
	note, err := h.notes.Create(r.Context(), noteservice.CreateInput{
		UserID:  req.UserID,
		Title:   title,
		Content: *req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "success", NoteID: note.ID})
}

// LegacySearchNotes handles GET /search-notes, kept for older clients.
func (h *Handler) LegacySearchNotes(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("query")
	if q == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query parameter 'query' is required"))
		return
	}
	answer, err := h.search.Search(r.Context(), q, uid, search.DefaultLimit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	out := LegacySearchResponse{Answer: answer.Answer, Results: make([]LegacySearchResult, 0, len(answer.Results))}
	for _, res := range answer.Results {
		out.Results = append(out.Results, LegacySearchResult{Text: res.Text, Score: res.Score})
	}
	writeJSON(w, http.StatusOK, out)
}
