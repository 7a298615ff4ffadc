package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/opentdf/ctivault/pkg/cti"
	"github.com/stretchr/testify/require"
)

func newFailingGateway(t *testing.T, status int, body string) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	gw, err := NewGatewayClient(GatewayClientOptions{Endpoint: u})
	require.NoError(t, err)
	return gw
}

func TestGatewayKeepsReportedKind(t *testing.T) {
	gw := newFailingGateway(t, http.StatusInternalServerError, `{"error":"hash mismatch","kind":"IntegrityViolation"}`)
	_, err := gw.Evaluate(context.Background(), FnReadMetadata, "u1")
	require.True(t, errors.Is(err, cti.ErrIntegrityViolation), "got %v", err)
}

func TestGatewayIgnoresUnknownKind(t *testing.T) {
	gw := newFailingGateway(t, http.StatusNotFound, `{"error":"no such record","kind":"RecordGone"}`)
	_, err := gw.Evaluate(context.Background(), FnReadMetadata, "u1")
	require.Equal(t, cti.KindNotFound, cti.KindOf(err), "got %v", err)

	gw = newFailingGateway(t, http.StatusBadGateway, `{"error":"peer down","kind":"PeerUnavailable"}`)
	_, err = gw.Submit(context.Background(), FnCreateMetadata, "{}")
	require.Equal(t, cti.KindTransient, cti.KindOf(err), "got %v", err)
	require.Equal(t, http.StatusServiceUnavailable, cti.HTTPStatus(cti.KindOf(err)))
}
