package client

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opentdf/ctivault/internal/crypto"
	"github.com/opentdf/ctivault/internal/ledger"
	"github.com/opentdf/ctivault/pkg/cti"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type PublishOptions struct {
	// UUID defaults to a random UUID.
	UUID           string
	Description    string
	SenderIdentity string
	AccessList     []string
	// Timestamp defaults to now.
	Timestamp time.Time
}

// Publish seals plaintext, stores the envelope and its key, and commits the
// metadata record. The steps are not atomic. A failure after blob_put leaves
// the blob (and possibly the secret) behind; those are logged, not removed.
func (c *Client) Publish(ctx context.Context, plaintext []byte, opts PublishOptions) (*cti.Record, error) {
	id := opts.UUID
	if id == "" {
		id = uuid.NewString()
	}
	accessList := opts.AccessList
	if accessList == nil {
		accessList = []string{}
	}
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	ctx, span := c.tracer.Start(ctx, "cti.publish", trace.WithAttributes(attribute.String("cti.uuid", id)))
	defer span.End()

	record := &cti.Record{
		UUID:           id,
		Description:    opts.Description,
		Timestamp:      cti.FormatTimestamp(ts),
		SenderIdentity: opts.SenderIdentity,
		VaultKey:       cti.SecretName(id),
		AccessList:     accessList,
	}
	// Orphans are only possible once something has been written.
	var written []slog.Attr
	fail := func(step cti.Step, err error) (*cti.Record, error) {
		perr := &cti.PipelineError{Step: step, Cause: err}
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(step))
		c.logger.Error("publish aborted", slog.String("uuid", id), slog.String("step", string(step)), slog.Any("error", err))
		if len(written) > 0 {
			args := []any{slog.String("uuid", id), slog.String("step", string(step))}
			for _, a := range written {
				args = append(args, a)
			}
			c.logger.Warn("publish left orphaned artifacts", args...)
		}
		return nil, perr
	}

	var key []byte
	err := c.step(ctx, cti.StepGenerateKey, func(context.Context) error {
		var err error
		if key, err = crypto.GenerateKey(crypto.KeySize); err != nil {
			return err
		}
		record.SHA256Hash = crypto.Digest(plaintext)
		return nil
	})
	if err != nil {
		return fail(cti.StepGenerateKey, err)
	}

	var envelope []byte
	err = c.step(ctx, cti.StepSeal, func(context.Context) error {
		var err error
		envelope, err = crypto.Seal(plaintext, key)
		return err
	})
	if err != nil {
		return fail(cti.StepSeal, err)
	}

	err = c.step(ctx, cti.StepBlobPut, func(ctx context.Context) error {
		var err error
		record.CID, err = c.blob.Put(ctx, envelope)
		return err
	})
	if err != nil {
		return fail(cti.StepBlobPut, err)
	}
	written = append(written, slog.String("cid", record.CID))

	err = c.step(ctx, cti.StepSecretPut, func(ctx context.Context) error {
		return c.vault.PutSecret(ctx, record.VaultKey, base64.StdEncoding.EncodeToString(key))
	})
	if err != nil {
		return fail(cti.StepSecretPut, err)
	}
	written = append(written, slog.String("vaultKey", record.VaultKey))

	var receipt *ledger.Receipt
	err = c.step(ctx, cti.StepLedgerSubmit, func(ctx context.Context) error {
		b, err := record.Marshal()
		if err != nil {
			return cti.E(cti.KindInvalidRecord, "marshal record", err)
		}
		receipt, err = c.ledger.Submit(ctx, ledger.FnCreateMetadata, string(b))
		return err
	})
	if err != nil {
		return fail(cti.StepLedgerSubmit, err)
	}

	c.logger.Info("artifact published",
		slog.String("uuid", id),
		slog.String("cid", record.CID),
		slog.String("txid", receipt.TransactionID),
		slog.Int("size", len(plaintext)),
	)
	return record, nil
}

// step runs fn inside a child span named after the step. Every step is a
// cancellation checkpoint: a done context aborts before fn runs.
func (c *Client) step(ctx context.Context, step cti.Step, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "cti."+string(step))
	defer span.End()
	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}
	if err != nil && cti.KindOf(err) == "" && ctx.Err() != nil {
		err = cti.E(cti.KindTransient, string(step), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(cti.KindOf(err)))
		return err
	}
	c.logger.Debug("pipeline step complete", slog.String("step", string(step)))
	return nil
}
