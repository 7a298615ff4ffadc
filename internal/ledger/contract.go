package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/opentdf/ctivault/pkg/cti"
)

// Contract implements the metadata ledger functions over a Backend. It
// satisfies Client so it can stand in for a remote ledger.
type Contract struct {
	backend  Backend
	encoding Encoding
	logger   *slog.Logger
}

type ContractOptions struct {
	// Encoding selects how Evaluate results are shaped on the wire.
	Encoding Encoding
	Logger   *slog.Logger
}

func NewContract(backend Backend, ops ...ContractOptions) *Contract {
	c := &Contract{backend: backend}
	if len(ops) > 0 {
		c.encoding = ops[0].Encoding
		c.logger = ops[0].Logger
	}
	if c.encoding == 0 {
		c.encoding = EncodingString
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *Contract) Submit(ctx context.Context, function string, args ...string) (*Receipt, error) {
	switch function {
	case FnCreateMetadata:
		if err := wantArgs(function, args, 1); err != nil {
			return nil, err
		}
		return c.CreateMetadata(ctx, args[0])
	default:
		return nil, unknownFunction("submit", function)
	}
}

func (c *Contract) Evaluate(ctx context.Context, function string, args ...string) (*Result, error) {
	var (
		payload []byte
		err     error
	)
	switch function {
	case FnReadMetadata:
		if err := wantArgs(function, args, 1); err != nil {
			return nil, err
		}
		payload, err = c.ReadMetadata(ctx, args[0])
	case FnMetadataExists:
		if err := wantArgs(function, args, 1); err != nil {
			return nil, err
		}
		var exists bool
		exists, err = c.MetadataExists(ctx, args[0])
		payload = []byte(strconv.FormatBool(exists))
	case FnGetAllMetadata:
		var pageSize, bookmark string
		if len(args) > 0 {
			pageSize = args[0]
		}
		if len(args) > 1 {
			bookmark = args[1]
		}
		var page *Page
		page, err = c.GetAllMetadata(ctx, pageSize, bookmark)
		if err == nil {
			payload, err = json.Marshal(page)
		}
	default:
		return nil, unknownFunction("evaluate", function)
	}
	if err != nil {
		return nil, err
	}
	return NewResult(payload, c.encoding), nil
}

// CreateMetadata validates and stores a record. A UUID can only be used once.
func (c *Contract) CreateMetadata(ctx context.Context, recordJSON string) (*Receipt, error) {
	const op = FnCreateMetadata
	var record cti.Record
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, cti.E(cti.KindInvalidRecord, op, err)
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	value, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Put(ctx, recordKey(record.UUID), value); err != nil {
		if errors.Is(err, ErrKeyExists) {
			return nil, cti.Errorf(cti.KindAlreadyExists, op, "metadata with UUID %s already exists", record.UUID)
		}
		return nil, cti.Classify(op, err, cti.KindTransient)
	}
	receipt := &Receipt{TransactionID: uuid.NewString()}
	c.logger.Info("metadata committed", slog.String("uuid", record.UUID), slog.String("txid", receipt.TransactionID))
	return receipt, nil
}

// ReadMetadata returns the stored record JSON.
func (c *Contract) ReadMetadata(ctx context.Context, id string) ([]byte, error) {
	const op = FnReadMetadata
	value, err := c.backend.Get(ctx, recordKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, cti.Errorf(cti.KindNotFound, op, "metadata with UUID %s does not exist", id)
		}
		return nil, cti.Classify(op, err, cti.KindTransient)
	}
	return value, nil
}

func (c *Contract) MetadataExists(ctx context.Context, id string) (bool, error) {
	_, err := c.ReadMetadata(ctx, id)
	if errors.Is(err, cti.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetAllMetadata pages through records in key order. The bookmark is the key
// of the first record of the next page.
func (c *Contract) GetAllMetadata(ctx context.Context, pageSize, bookmark string) (*Page, error) {
	const op = FnGetAllMetadata
	size := defaultPageSize
	if pageSize != "" {
		n, err := strconv.Atoi(pageSize)
		if err != nil {
			return nil, cti.Errorf(cti.KindInvalidRecord, op, "invalid page size %q", pageSize)
		}
		if n > 0 {
			size = n
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	kvs, err := c.backend.List(ctx, KeyPrefix, bookmark, size+1)
	if err != nil {
		return nil, cti.Classify(op, err, cti.KindTransient)
	}
	page := &Page{MetadataList: make([]cti.Record, 0, len(kvs))}
	if len(kvs) > size {
		page.Bookmark = kvs[size].Key
		kvs = kvs[:size]
	}
	for _, kv := range kvs {
		var r cti.Record
		if err := json.Unmarshal(kv.Value, &r); err != nil {
			return nil, cti.E(cti.KindResponseFormat, op, err)
		}
		page.MetadataList = append(page.MetadataList, r)
	}
	return page, nil
}

func wantArgs(function string, args []string, n int) error {
	if len(args) != n {
		return cti.Errorf(cti.KindInvalidRecord, function, "expects %d argument(s), got %d", n, len(args))
	}
	return nil
}

func unknownFunction(mode, function string) error {
	return cti.Errorf(cti.KindResponseFormat, mode, "unknown function %q", function)
}
