// Package client publishes CTI artifacts to the blob store, vault and ledger
// and reconstructs them with end to end verification.
package client

import (
	"errors"
	"log/slog"

	"github.com/opentdf/ctivault/internal/blobstore"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/internal/vault"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/opentdf/ctivault/pkg/cti/client"

// Client runs the publish and retrieve pipelines. It holds no per-artifact
// state and is safe for concurrent use.
type Client struct {
	blob   blobstore.Store
	vault  vault.Store
	ledger ledger.Client
	logger *slog.Logger
	tracer trace.Tracer
}

type ClientOptions struct {
	Blob   blobstore.Store
	Vault  vault.Store
	Ledger ledger.Client
	Logger *slog.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func NewClient(ops ...ClientOptions) (*Client, error) {
	client := &Client{}
	var tp trace.TracerProvider
	if len(ops) > 0 {
		client.blob = ops[0].Blob
		client.vault = ops[0].Vault
		client.ledger = ops[0].Ledger
		client.logger = ops[0].Logger
		tp = ops[0].TracerProvider
	}
	if client.blob == nil || client.vault == nil || client.ledger == nil {
		return nil, errors.New("blob store, vault and ledger clients are required")
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	client.tracer = tp.Tracer(tracerName)
	clientDefaults(client)
	return client, nil
}

func clientDefaults(client *Client) {
	if client.logger == nil {
		client.logger = slog.Default()
	}
}
