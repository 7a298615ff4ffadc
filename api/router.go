package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/pkg/cti/client"
)

type RouterOptions struct {
	// Ledger, when set, is served as a gateway under /api/ledger.
	Ledger ledger.Client
	// LedgerVerifyKey requires gateway invocations to be signed by its
	// private half.
	LedgerVerifyKey any
	// Artifacts, when set, is served under /api/artifacts.
	Artifacts     *client.Client
	MaxUploadSize int64
	// Auth guards everything under /api.
	Auth           func(http.Handler) http.Handler
	AllowedOrigins []string
}

func NewRouter(ops RouterOptions) chi.Router {
	r := chi.NewRouter()
	if len(ops.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   ops.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{headerUUID, headerCID, headerSHA256, headerSender, headerStatus},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Mount("/", LoadHealthRoutes())
	r.Route("/api", func(r chi.Router) {
		if ops.Auth != nil {
			r.Use(ops.Auth)
		}
		if ops.Ledger != nil {
			r.Mount("/ledger", LoadLedgerRoutes(ops.Ledger, ops.LedgerVerifyKey))
		}
		if ops.Artifacts != nil {
			r.Mount("/artifacts", LoadArtifactRoutes(ops.Artifacts, ops.MaxUploadSize))
		}
	})
	return r
}
