package handlers

import (
	"net/http"

	"watchverse/web"
)

// StaticHandler serves the embedded stylesheet and client script. The
// embedded paths already carry the static/ prefix, so no stripping.
func StaticHandler() http.Handler {
	return http.FileServer(http.FS(web.FS))
}
