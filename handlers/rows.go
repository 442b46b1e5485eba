package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"watchverse/models"
)

type rowPayload struct {
	Results []models.MediaItem `json:"results"`
}

// GenreRow serves the deferred genre rows. The response carries raw
// catalog items; the page merges its embedded relation snapshot into
// them on the client. Upstream failures degrade to an empty row rather
// than breaking the page.
func (h *Pages) GenreRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := vars["mediaType"]
	genreID, err := strconv.Atoi(vars["genreID"])
	if err != nil || genreID <= 0 || (kind != models.MediaTypeMovie && kind != models.MediaTypeTV) {
		http.Error(w, "invalid row", http.StatusBadRequest)
		return
	}

	page, err := h.Catalog.ByGenre(r.Context(), kind, genreID, 1)
	if err != nil {
		log.Printf("[pages] genre row %s/%d fetch failed: %v", kind, genreID, err)
		writeJSON(w, http.StatusOK, rowPayload{Results: []models.MediaItem{}})
		return
	}
	writeJSON(w, http.StatusOK, rowPayload{Results: page.Results})
}
