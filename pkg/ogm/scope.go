package ogm

import (
	"context"
	"errors"

	"github.com/orneryd/nornicogm/pkg/bookmark"
	"github.com/orneryd/nornicogm/pkg/driver"
)

// Transaction runs fn inside a transaction with unspecified access mode.
//
// The transaction starts with the bookmarks set by UseBookmarks, which are
// consumed. When fn returns an error the transaction is rolled back and
// the error is returned; a raw uniqueness constraint failure from the
// server is returned as UniquePropertyError. Otherwise the transaction is
// committed and its bookmarks are available from LastBookmarks. A panic in
// fn rolls back and re-panics.
func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scope(ctx, driver.AccessModeUnspecified, fn)
}

// ReadTransaction is Transaction with read access, routed to readers in a
// cluster.
func (db *Database) ReadTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scope(ctx, driver.AccessModeRead, fn)
}

// WriteTransaction is Transaction with write access.
func (db *Database) WriteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scope(ctx, driver.AccessModeWrite, fn)
}

func (db *Database) scope(ctx context.Context, mode driver.AccessMode, fn func(ctx context.Context) error) error {
	_, err := db.runScoped(ctx, mode, db.takePending(), fn)
	return err
}

// UseBookmarks sets the bookmarks the next transaction scope starts with.
func (db *Database) UseBookmarks(bookmarks driver.Bookmarks) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.pending = append(driver.Bookmarks(nil), bookmarks...)
}

// LastBookmarks returns the bookmarks of the last transaction committed by
// a scope.
func (db *Database) LastBookmarks() driver.Bookmarks {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append(driver.Bookmarks(nil), db.last...)
}

func (db *Database) takePending() driver.Bookmarks {
	db.mu.Lock()
	defer db.mu.Unlock()
	bm := db.pending
	db.pending = nil
	return bm
}

// runScoped drives one scoped transaction and returns the commit bookmarks.
func (db *Database) runScoped(ctx context.Context, mode driver.AccessMode, bookmarks driver.Bookmarks, fn func(ctx context.Context) error) (_ driver.Bookmarks, err error) {
	if err := db.ensureConnection(ctx); err != nil {
		return nil, err
	}
	if err := db.Begin(ctx, mode, bookmarks); err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			if rerr := db.Rollback(ctx); rerr != nil {
				db.logger.Error("rollback after panic", "error", rerr)
			}
			panic(p)
		}
	}()

	if ferr := fn(ctx); ferr != nil {
		rerr := db.Rollback(ctx)
		if errors.Is(rerr, ErrNoTransaction) {
			// fn already finished the transaction itself.
			rerr = nil
		}
		return nil, errors.Join(scopeError(ferr), rerr)
	}

	bm, err := db.Commit(ctx)
	if err != nil {
		return nil, err
	}
	db.mu.Lock()
	db.last = bm
	db.mu.Unlock()
	return bm, nil
}

// BookmarkTransaction runs fn in a transaction that starts with bookmarks
// and returns fn's result together with the bookmarks of the commit, for
// causal chaining across independent transactions.
func (db *Database) BookmarkTransaction(ctx context.Context, mode driver.AccessMode, bookmarks driver.Bookmarks, fn func(ctx context.Context) (any, error)) (any, driver.Bookmarks, error) {
	return WithBookmarks(ctx, db, mode, bookmarks, fn)
}

// WithBookmarks is the typed form of Database.BookmarkTransaction.
func WithBookmarks[T any](ctx context.Context, db *Database, mode driver.AccessMode, bookmarks driver.Bookmarks, fn func(ctx context.Context) (T, error)) (T, driver.Bookmarks, error) {
	var result T
	bm, err := db.runScoped(ctx, mode, bookmarks, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, nil, err
	}
	return result, bm, nil
}

// ChainedTransaction runs fn in a transaction that starts with the
// bookmarks stored under chain and stores the commit's bookmarks back, so
// that successive calls (from any process sharing the store) are causally
// ordered.
func (db *Database) ChainedTransaction(ctx context.Context, store bookmark.Store, chain string, mode driver.AccessMode, fn func(ctx context.Context) error) error {
	prev, err := store.Get(ctx, chain)
	if err != nil {
		return err
	}
	bm, err := db.runScoped(ctx, mode, prev, fn)
	if err != nil {
		return err
	}
	if len(bm) == 0 {
		return nil
	}
	return store.Put(ctx, chain, bm)
}
