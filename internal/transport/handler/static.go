package handler

import (
	"embed"
	"net/http"
)

//go:embed static/index.html
var staticFS embed.FS

// Index serves the embedded front-end entry page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeJSONError(w, "entry page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
