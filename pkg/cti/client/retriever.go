package client

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/opentdf/ctivault/internal/crypto"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/pkg/cti"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const StatusVerified = "Verified"

// Result is a reconstructed artifact. It is only produced once the
// plaintext has been authenticated and matched against the record's hash.
type Result struct {
	Record    *cti.Record
	Plaintext []byte
	Status    string
}

// Retrieve reconstructs the artifact recorded under id. It never writes to
// any store.
func (c *Client) Retrieve(ctx context.Context, id string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "cti.retrieve", trace.WithAttributes(attribute.String("cti.uuid", id)))
	defer span.End()
	fail := func(step cti.Step, err error) (*Result, error) {
		perr := &cti.PipelineError{Step: step, Cause: err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(step))
		c.logger.Error("retrieve failed", slog.String("uuid", id), slog.String("step", string(step)), slog.Any("error", err))
		return nil, perr
	}

	var record *cti.Record
	err := c.step(ctx, cti.StepLedgerEvaluate, func(ctx context.Context) error {
		var err error
		record, err = c.readRecord(ctx, id)
		return err
	})
	if err != nil {
		return fail(cti.StepLedgerEvaluate, err)
	}

	var envelope []byte
	err = c.step(ctx, cti.StepBlobGet, func(ctx context.Context) error {
		var err error
		envelope, err = c.blob.Get(ctx, record.CID)
		return err
	})
	if err != nil {
		return fail(cti.StepBlobGet, err)
	}

	var key []byte
	err = c.step(ctx, cti.StepSecretGet, func(ctx context.Context) error {
		encoded, err := c.vault.GetSecret(ctx, record.VaultKey)
		if err != nil {
			return err
		}
		key, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return cti.E(cti.KindResponseFormat, "decode secret", err)
		}
		return nil
	})
	if err != nil {
		return fail(cti.StepSecretGet, err)
	}

	var plaintext []byte
	err = c.step(ctx, cti.StepOpen, func(context.Context) error {
		var err error
		plaintext, err = crypto.Open(envelope, key)
		return err
	})
	if err != nil {
		return fail(cti.StepOpen, err)
	}

	err = c.step(ctx, cti.StepVerify, func(context.Context) error {
		got := crypto.Digest(plaintext)
		if subtle.ConstantTimeCompare([]byte(got), []byte(record.SHA256Hash)) != 1 {
			return cti.Errorf(cti.KindIntegrityViolation, "verify", "plaintext hash %s does not match recorded %s", got, record.SHA256Hash)
		}
		return nil
	})
	if err != nil {
		return fail(cti.StepVerify, err)
	}

	c.logger.Info("artifact verified", slog.String("uuid", id), slog.String("cid", record.CID), slog.Int("size", len(plaintext)))
	return &Result{Record: record, Plaintext: plaintext, Status: StatusVerified}, nil
}

// Show returns the metadata record without touching the blob store or vault.
func (c *Client) Show(ctx context.Context, id string) (*cti.Record, error) {
	record, err := c.readRecord(ctx, id)
	if err != nil {
		return nil, &cti.PipelineError{Step: cti.StepLedgerEvaluate, Cause: err}
	}
	return record, nil
}

// List returns one page of records and the bookmark of the next page. An
// empty bookmark means there are no more pages.
func (c *Client) List(ctx context.Context, pageSize int, bookmark string) ([]cti.Record, string, error) {
	const op = "list metadata"
	var size string
	if pageSize > 0 {
		size = strconv.Itoa(pageSize)
	}
	res, err := c.ledger.Evaluate(ctx, ledger.FnGetAllMetadata, size, bookmark)
	if err != nil {
		return nil, "", cti.Classify(op, err, cti.KindTransient)
	}
	payload, err := res.Bytes()
	if err != nil {
		return nil, "", err
	}
	var page ledger.Page
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, "", cti.E(cti.KindResponseFormat, op, err)
	}
	return page.MetadataList, page.Bookmark, nil
}

func (c *Client) readRecord(ctx context.Context, id string) (*cti.Record, error) {
	res, err := c.ledger.Evaluate(ctx, ledger.FnReadMetadata, id)
	if err != nil {
		return nil, cti.Classify("read metadata", err, cti.KindTransient)
	}
	payload, err := res.Bytes()
	if err != nil {
		return nil, err
	}
	return cti.ParseRecord(payload)
}
