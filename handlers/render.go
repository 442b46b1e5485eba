package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"watchverse/models"
	"watchverse/web"
)

// pageFiles lists the page templates; each is parsed together with the
// layout and shared partials.
var pageFiles = []string{
	"home.html",
	"listing.html",
	"grid.html",
	"detail.html",
	"search.html",
	"lists.html",
	"mylists.html",
	"profile.html",
	"auth.html",
	"update_password.html",
	"notfound.html",
}

var pageTemplates = mustParsePages()

func mustParsePages() map[string]*template.Template {
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		pages[name] = template.Must(template.ParseFS(web.FS,
			"templates/layout.html", "templates/partials.html", "templates/"+name))
	}
	return pages
}

// basePage carries the data every page needs.
type basePage struct {
	Title string
	User  *models.Profile
	// SnapshotJSON is the user's relation snapshot, rendered once per page
	// and consumed by lazy rows and card actions client side.
	SnapshotJSON template.JS
}

func newBasePage(title string, user *models.Profile, snap *relationSnapshot) basePage {
	return basePage{Title: title, User: user, SnapshotJSON: snap.JSON()}
}

// render writes a page template. Render failures log and degrade to a
// plain 500; by this point headers may already be written.
func render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := pageTemplates[name]
	if !ok {
		log.Printf("[handlers] unknown template %q", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("[handlers] render %s: %v", name, err)
	}
}

// renderNotFound writes the shared 404 page.
func renderNotFound(w http.ResponseWriter, user *models.Profile, what string) {
	w.WriteHeader(http.StatusNotFound)
	render(w, "notfound.html", struct {
		basePage
		What string
	}{newBasePage("Not Found", user, nil), what})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

// writeMutationError maps a mutation failure onto the response contract:
// a structured {error} body the client rolls its optimistic state back on.
func writeMutationError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%v", err)})
}
