package server

import (
	"net/http"

	"github.com/mindflavor/gallerysrv/internal/gallery"
)

// NewGalleryHandler wires the gallery HTTP surface onto a ServeMux, mirroring
// the route table in spec §4.4.
func NewGalleryHandler(h *gallery.Handlers) http.Handler {
	if h == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gallery unavailable", http.StatusServiceUnavailable)
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /path/{path...}", h.ServeFile)
	mux.HandleFunc("GET /thumb/{size}/{path...}", h.ServeThumb)
	mux.HandleFunc("GET /list/{kind}/{path...}", h.ServeList)
	mux.HandleFunc("GET /allowed/{path...}", h.ServeAllowed)
	mux.HandleFunc("GET /firstlevel", h.ServeFirstLevel)
	mux.HandleFunc("GET /", h.ServeStatic)
	return mux
}

// NewMetricsHandler wires the separate metrics listener's single route.
func NewMetricsHandler(handler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	return mux
}
