package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/noteservice"
)

const noteNotFound = "Note not found"

// ListNotes handles GET /notes.
//
//	@Summary		List notes of a user
//	@Tags			notes
//	@Produce		json
//	@Param			user_id		query		string	true	"Owner"
//	@Param			filter_type	query		string	false	"Filter"	Enums(all, favorites, archived, trash)
//	@Param			search		query		string	false	"Substring of title or content"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{array}		models.Note
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit", 50)
	if !ok {
		return
	}
	offset, ok := intParam(w, r, "offset", 0)
	if !ok {
		return
	}
	filter := r.URL.Query().Get("filter_type")
	if filter == "" {
		filter = models.FilterAll
	}

	notes, err := h.notes.List(r.Context(), models.ListQuery{
		UserID:     uid,
		FilterType: filter,
		Search:     r.URL.Query().Get("search"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// CreateNote handles POST /notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		200		{object}	models.Note
//	@Failure		422		{object}	errResponse
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
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
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GetNote handles GET /notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			user_id	query		string	true	"Owner"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	note, err := h.notes.Get(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PATCH /notes/{id}.
//
//	@Summary		Partially update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			user_id	query		string				true	"Owner"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.notes.Update(r.Context(), chi.URLParam(r, "id"), uid, req.NotePatch)
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Move a note to the trash or delete it permanently
//	@Tags			notes
//	@Produce		json
//	@Param			id			path		string	true	"Note id"
//	@Param			user_id		query		string	true	"Owner"
//	@Param			permanent	query		bool	false	"Delete permanently"
//	@Success		200			{object}	StatusResponse
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	permanent, ok := boolParam(w, r, "permanent")
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	status := "moved_to_trash"
	var err error
	if permanent {
		status = "permanently_deleted"
		err = h.notes.HardDelete(r.Context(), id, uid)
	} else {
		err = h.notes.SoftDelete(r.Context(), id, uid)
	}
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: status, NoteID: id})
}

// RestoreNote handles POST /notes/{id}/restore.
//
//	@Summary		Restore a note from the trash
//	@Tags			notes
//	@Param			id		path		string	true	"Note id"
//	@Param			user_id	query		string	true	"Owner"
//	@Success		200		{object}	StatusResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id}/restore [post]
func (h *Handler) RestoreNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.notes.Restore(r.Context(), id, uid); err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "restored", NoteID: id})
}

// ToggleFavorite handles POST /notes/{id}/favorite.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	v, err := h.notes.ToggleFavorite(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "is_favorite": v})
}

// ToggleArchive handles POST /notes/{id}/archive.
func (h *Handler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	v, err := h.notes.ToggleArchive(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "is_archived": v})
}

// EmptyTrash handles DELETE /notes/trash/empty.
//
//	@Summary		Permanently delete every trashed note of a user
//	@Tags			notes
//	@Param			user_id	query	string	true	"Owner"
//	@Router			/notes/trash/empty [delete]
func (h *Handler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.notes.EmptyTrash(r.Context(), uid)
	if err != nil {
		writeError(w, r, err, noteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "deleted_count": n})
}
