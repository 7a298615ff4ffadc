package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/opentdf/ctivault/internal/db"
)

const uniqueViolation = "23505"

// PostgresBackend keeps world state in the cti_ledger.metadata table.
// Apply the embedded migrations before use.
type PostgresBackend struct {
	client *db.Client
}

func NewPostgresBackend(client *db.Client) *PostgresBackend {
	return &PostgresBackend{client: client}
}

func (p *PostgresBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.client.Exec(ctx,
		`INSERT INTO cti_ledger.metadata (key, value) VALUES (@key, @value)`,
		pgx.NamedArgs{"key": key, "value": string(value)},
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrKeyExists
	}
	return err
}

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.client.QueryRow(ctx,
		`SELECT value::text FROM cti_ledger.metadata WHERE key = @key`,
		pgx.NamedArgs{"key": key},
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (p *PostgresBackend) List(ctx context.Context, prefix, start string, limit int) ([]KV, error) {
	rows, err := p.client.Query(ctx,
		`SELECT key, value::text FROM cti_ledger.metadata
		WHERE starts_with(key, @prefix) AND key COLLATE "C" >= @start
		ORDER BY key COLLATE "C"
		LIMIT @limit`,
		pgx.NamedArgs{"prefix": prefix, "start": start, "limit": limit},
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (KV, error) {
		var kv KV
		err := row.Scan(&kv.Key, &kv.Value)
		return kv, err
	})
}

func (p *PostgresBackend) Close() error {
	p.client.Close()
	return nil
}
