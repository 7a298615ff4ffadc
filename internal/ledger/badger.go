package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
)

type BadgerConfig struct {
	Path     string // ignored when InMemory is set
	InMemory bool
	Logger   *logrus.Logger
}

// BadgerBackend keeps world state in an embedded badger database. Values are
// wrapped in a deterministic CBOR entry that records the commit time.
type BadgerBackend struct {
	db  *badger.DB
	enc cbor.EncMode
	log *logrus.Logger
}

type badgerEntry struct {
	Value       []byte `cbor:"1,keyasint"`
	CommittedAt int64  `cbor:"2,keyasint"`
}

func NewBadgerBackend(config BadgerConfig) (*BadgerBackend, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if !config.InMemory && config.Path == "" {
		return nil, errors.New("badger path is required unless running in memory")
	}

	opts := badger.DefaultOptions(config.Path).WithLogger(config.Logger)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(config.Logger)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(errors.New("error opening badger ledger"), err)
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		db.Close()
		return nil, err
	}
	config.Logger.WithFields(logrus.Fields{
		"path":     config.Path,
		"inMemory": config.InMemory,
	}).Info("badger ledger opened")
	return &BadgerBackend{db: db, enc: enc, log: config.Logger}, nil
}

func (b *BadgerBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, err := b.enc.Marshal(badgerEntry{Value: value, CommittedAt: time.Now().UTC().UnixNano()})
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return ErrKeyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(key), entry)
	})
}

func (b *BadgerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeEntry(raw)
}

func (b *BadgerBackend) List(ctx context.Context, prefix, start string, limit int) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seek := start
	if seek < prefix {
		seek = prefix
	}
	var out []KV
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(seek)); it.ValidForPrefix([]byte(prefix)) && len(out) < limit; it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			value, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			out = append(out, KV{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	return out, err
}

func (b *BadgerBackend) Close() error {
	b.log.Info("closing badger ledger")
	return b.db.Close()
}

func decodeEntry(raw []byte) ([]byte, error) {
	var e badgerEntry
	if err := cbor.Unmarshal(raw, &e); err != nil {
		return nil, errors.Join(errors.New("corrupt ledger entry"), err)
	}
	return e.Value, nil
}
