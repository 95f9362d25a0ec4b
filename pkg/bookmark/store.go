// Package bookmark persists named bookmark chains.
//
// A chain is a name under which the bookmarks of the latest committed
// transaction are kept, so that a later transaction (possibly in another
// process) can start with them and observe every write that preceded them.
//
// Two stores are provided: MemoryStore for a single process and BadgerStore
// for chains that must survive restarts.
//
// Example:
//
//	store, err := bookmark.OpenBadger("./bookmarks", logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	prev, _ := store.Get(ctx, "orders")
//	_, bm, err := db.BookmarkTransaction(ctx, driver.AccessModeWrite, prev, work)
//	if err == nil {
//		err = store.Put(ctx, "orders", bm)
//	}
package bookmark

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/orneryd/nornicogm/pkg/driver"
)

var (
	// ErrEmptyChain is returned for an empty chain name.
	ErrEmptyChain = errors.New("bookmark chain name is empty")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bookmark store closed")
)

// Store keeps the latest bookmarks per chain. Get on an unknown chain
// returns nil bookmarks and no error.
type Store interface {
	Get(ctx context.Context, chain string) (driver.Bookmarks, error)
	Put(ctx context.Context, chain string, bookmarks driver.Bookmarks) error
	Delete(ctx context.Context, chain string) error
	Chains(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string]driver.Bookmarks
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string]driver.Bookmarks)}
}

func (s *MemoryStore) Get(_ context.Context, chain string) (driver.Bookmarks, error) {
	if chain == "" {
		return nil, ErrEmptyChain
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return clone(s.chains[chain]), nil
}

func (s *MemoryStore) Put(_ context.Context, chain string, bookmarks driver.Bookmarks) error {
	if chain == "" {
		return ErrEmptyChain
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.chains[chain] = clone(bookmarks)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, chain string) error {
	if chain == "" {
		return ErrEmptyChain
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.chains, chain)
	return nil
}

func (s *MemoryStore) Chains(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, len(s.chains))
	for name := range s.chains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clone(b driver.Bookmarks) driver.Bookmarks {
	if len(b) == 0 {
		return nil
	}
	return append(driver.Bookmarks(nil), b...)
}
