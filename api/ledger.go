package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/pkg/cti"
)

const maxInvocationSize = 4 << 20

type ledgerGateway struct {
	ledger.Client
	// verifyKey, when set, is the public key signed invocations must verify
	// against. Unsigned invocations are then refused.
	verifyKey any
}

type invocationRequest struct {
	ledger.Invocation
	SignedRequestToken string `json:"signedRequestToken"`
}

type submitResponse struct {
	TransactionID string `json:"transactionId"`
}

// LoadLedgerRoutes serves the submit/evaluate gateway in front of l.
func LoadLedgerRoutes(l ledger.Client, verifyKey any) chi.Router {
	g := ledgerGateway{Client: l, verifyKey: verifyKey}
	r := chi.NewRouter()
	r.Route("/", func(r chi.Router) {
		r.Post("/submit", g.submit)
		r.Post("/evaluate", g.evaluate)
	})
	return r
}

func (g ledgerGateway) decodeInvocation(w http.ResponseWriter, r *http.Request) (*ledger.Invocation, error) {
	const op = "decode invocation"
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvocationSize))
	if err != nil {
		return nil, cti.E(cti.KindInvalidRecord, op, err)
	}
	var req invocationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, cti.E(cti.KindInvalidRecord, op, err)
	}
	if req.SignedRequestToken != "" {
		if g.verifyKey == nil {
			return nil, cti.Errorf(cti.KindUnauthorized, op, "signed requests are not accepted by this gateway")
		}
		return ledger.VerifyInvocation(req.SignedRequestToken, g.verifyKey)
	}
	if g.verifyKey != nil {
		return nil, cti.Errorf(cti.KindUnauthorized, op, "request must be signed")
	}
	if req.Function == "" {
		return nil, cti.Errorf(cti.KindInvalidRecord, op, "function name not provided")
	}
	return &req.Invocation, nil
}

func (g ledgerGateway) submit(w http.ResponseWriter, r *http.Request) {
	inv, err := g.decodeInvocation(w, r)
	if err != nil {
		writeError(w, "could not decode submit request", err)
		return
	}
	receipt, err := g.Submit(r.Context(), inv.Function, inv.Args...)
	if err != nil {
		writeError(w, "submit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{TransactionID: receipt.TransactionID})
}

func (g ledgerGateway) evaluate(w http.ResponseWriter, r *http.Request) {
	inv, err := g.decodeInvocation(w, r)
	if err != nil {
		writeError(w, "could not decode evaluate request", err)
		return
	}
	res, err := g.Evaluate(r.Context(), inv.Function, inv.Args...)
	if err != nil {
		writeError(w, "evaluate failed", err)
		return
	}
	result, err := res.MarshalJSON()
	if err != nil {
		writeError(w, "could not encode result", err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.EvaluateResponse{Result: result})
}
