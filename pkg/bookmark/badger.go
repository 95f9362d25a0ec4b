package bookmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/nornicogm/pkg/driver"
)

const chainPrefix = "bookmark:"

// BadgerStore persists chains in a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

// record is the stored value of a chain.
type record struct {
	Bookmarks []string `json:"bookmarks"`
}

// OpenBadger opens (or creates) a BadgerStore in dir. An empty dir keeps
// the data in memory. Badger's own logging goes to logger at debug level
// and above; nil silences it.
func OpenBadger(dir string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}
	// Bookmark records are tiny.
	opts = opts.
		WithMemTableSize(4 << 20).
		WithValueLogFileSize(16 << 20).
		WithNumMemtables(1).
		WithValueThreshold(1 << 10).
		WithBlockCacheSize(1 << 20).
		WithIndexCacheSize(1 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open bookmark store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func chainKey(chain string) []byte {
	return []byte(chainPrefix + chain)
}

func (s *BadgerStore) Get(_ context.Context, chain string) (driver.Bookmarks, error) {
	if chain == "" {
		return nil, ErrEmptyChain
	}
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chainKey(chain))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get", chain, err)
	}
	return clone(rec.Bookmarks), nil
}

func (s *BadgerStore) Put(_ context.Context, chain string, bookmarks driver.Bookmarks) error {
	if chain == "" {
		return ErrEmptyChain
	}
	data, err := json.Marshal(record{Bookmarks: clone(bookmarks)})
	if err != nil {
		return s.wrap("encode", chain, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chainKey(chain), data)
	})
	return s.wrap("put", chain, err)
}

func (s *BadgerStore) Delete(_ context.Context, chain string) error {
	if chain == "" {
		return ErrEmptyChain
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chainKey(chain))
	})
	return s.wrap("delete", chain, err)
}

func (s *BadgerStore) Chains(context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chainPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), chainPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("list", "", err)
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) wrap(op, chain string, err error) error {
	if err == nil {
		return nil
	}
	if err == badger.ErrDBClosed {
		err = fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if chain == "" {
		return fmt.Errorf("bookmark %s: %w", op, err)
	}
	return fmt.Errorf("bookmark %s %q: %w", op, chain, err)
}

// badgerLogger routes badger.Logger output to slog.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
