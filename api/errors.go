package api

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/pkg/cti"
)

// writeError answers with the status for err's kind and a JSON body that
// carries the kind so remote clients can restore it.
func writeError(w http.ResponseWriter, msg string, err error) {
	kind := cti.KindOf(err)
	status := cti.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.Any("error", err))
	} else {
		slog.Info(msg, slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ledger.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("could not encode response", slog.Any("error", err))
	}
}
