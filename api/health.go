package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentdf/ctivault/internal/version"
)

func LoadHealthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetVersion())
	})
	return r
}
