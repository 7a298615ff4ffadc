// Package ledger submits and queries CTI metadata records on an append-only
// ledger, either through an HTTP gateway or against an in-process contract.
package ledger

import (
	"context"

	"github.com/opentdf/ctivault/pkg/cti"
)

// Ledger functions. Writes go through Submit, reads through Evaluate.
const (
	FnCreateMetadata = "CreateMetadata"
	FnReadMetadata   = "ReadMetadata"
	FnMetadataExists = "MetadataExists"
	FnGetAllMetadata = "GetAllMetadata"
)

// KeyPrefix namespaces metadata records in the ledger's key space.
const KeyPrefix = "CTI_"

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

// Client is the submit/evaluate surface of a ledger. Submit is acknowledged
// at least once; Evaluate may lag the latest committed Submit.
type Client interface {
	Submit(ctx context.Context, function string, args ...string) (*Receipt, error)
	Evaluate(ctx context.Context, function string, args ...string) (*Result, error)
}

// Receipt acknowledges a submitted transaction.
type Receipt struct {
	TransactionID string `json:"transactionId"`
}

// Page is one page of GetAllMetadata. An empty Bookmark means there are no
// further pages.
type Page struct {
	MetadataList []cti.Record `json:"metadataList"`
	Bookmark     string       `json:"bookmark"`
}

func recordKey(uuid string) string {
	return KeyPrefix + uuid
}
