package api

import (
	"net/http"

	"github.com/starford/neuralos/internal/search"
)

// Search handles GET /search.
//
//	@Summary		Semantic search with an AI-written answer
//	@Tags			search
//	@Produce		json
//	@Param			query	query		string	true	"Question"
//	@Param			user_id	query		string	true	"Owner"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	models.Answer
//	@Failure		422		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("query")
	if q == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("query parameter 'query' is required"))
		return
	}
	limit, ok := intParam(w, r, "limit", search.DefaultLimit)
	if !ok {
		return
	}
	answer, err := h.search.Search(r.Context(), q, uid, limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// Stats handles GET /stats. It never fails.
//
//	@Summary		Dashboard summary for a user
//	@Tags			stats
//	@Produce		json
//	@Param			user_id	query		string	true	"Owner"
//	@Success		200		{object}	models.UserStats
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Get(r.Context(), uid))
}
