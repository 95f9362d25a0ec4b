package ogm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/orneryd/nornicogm/pkg/driver"
)

// txState tracks the transaction lifecycle. beginning and finishing cover
// the network round trips, during which the lock is not held.
type txState int

const (
	txIdle txState = iota
	txBeginning
	txActive
	txFinishing
)

func (s txState) String() string {
	switch s {
	case txIdle:
		return "idle"
	case txBeginning:
		return "beginning"
	case txActive:
		return "active"
	case txFinishing:
		return "finishing"
	default:
		return fmt.Sprintf("txState(%d)", int(s))
	}
}

// activeTx is the state of the transaction in progress.
type activeTx struct {
	id        string
	mode      driver.AccessMode
	bookmarks driver.Bookmarks
	session   driver.Session
	tx        driver.Transaction
}

// Begin starts an explicit transaction. Bookmarks, when given, make the
// transaction observe every write that preceded them.
//
// Begin fails with ErrTransactionInProgress while another transaction is
// active.
func (db *Database) Begin(ctx context.Context, mode driver.AccessMode, bookmarks driver.Bookmarks) error {
	db.mu.Lock()
	if db.state != txIdle {
		state := db.state
		db.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrTransactionInProgress, state)
	}
	db.state = txBeginning
	db.mu.Unlock()

	id := uuid.NewString()
	ctx, span := db.startSpan(ctx, "nornicogm.begin",
		attribute.String(attrTxID, id),
		attribute.String(attrAccessMode, mode.String()),
		attribute.Int(attrBookmarks, len(bookmarks)),
	)
	defer span.End()

	tx, err := db.begin(ctx, id, mode, bookmarks)

	db.mu.Lock()
	if err != nil {
		db.state = txIdle
	} else {
		db.state = txActive
		db.active = tx
	}
	db.mu.Unlock()

	endSpan(span, err)
	if err != nil {
		return err
	}
	db.logger.Debug("transaction started", "tx", id, "mode", mode.String())
	return nil
}

func (db *Database) begin(ctx context.Context, id string, mode driver.AccessMode, bookmarks driver.Bookmarks) (*activeTx, error) {
	if err := db.ensureConnection(ctx); err != nil {
		return nil, err
	}
	sess, err := db.conn.Session(ctx, driver.SessionConfig{AccessMode: mode, Bookmarks: bookmarks})
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	tx, err := sess.BeginTransaction(ctx)
	if err != nil {
		if cerr := sess.Close(ctx); cerr != nil {
			db.logger.Warn("closing session after failed begin", "tx", id, "error", cerr)
		}
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &activeTx{id: id, mode: mode, bookmarks: bookmarks, session: sess, tx: tx}, nil
}

// takeActive moves the active transaction to the finishing state.
func (db *Database) takeActive() (*activeTx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.state != txActive {
		return nil, ErrNoTransaction
	}
	tx := db.active
	db.active = nil
	db.state = txFinishing
	return tx, nil
}

// Commit commits the active transaction and returns its bookmarks. The
// transaction and its session are released and the Database returns to
// idle even when the commit fails.
func (db *Database) Commit(ctx context.Context) (driver.Bookmarks, error) {
	tx, err := db.takeActive()
	if err != nil {
		return nil, err
	}
	ctx, span := db.startSpan(ctx, "nornicogm.commit", attribute.String(attrTxID, tx.id))
	defer span.End()

	var bookmarks driver.Bookmarks
	err = func() (err error) {
		defer func() { err = errors.Join(err, db.release(ctx, tx)) }()
		if err := tx.tx.Commit(ctx); err != nil {
			return classifyQueryError(err, true)
		}
		bookmarks = tx.session.LastBookmarks()
		return nil
	}()

	endSpan(span, err)
	if err != nil {
		db.logger.Debug("transaction commit failed", "tx", tx.id, "error", err)
		return nil, err
	}
	db.logger.Debug("transaction committed", "tx", tx.id, "bookmarks", len(bookmarks))
	return bookmarks, nil
}

// Rollback rolls back the active transaction. The transaction and its
// session are released even when the rollback fails.
func (db *Database) Rollback(ctx context.Context) error {
	tx, err := db.takeActive()
	if err != nil {
		return err
	}
	ctx, span := db.startSpan(ctx, "nornicogm.rollback", attribute.String(attrTxID, tx.id))
	defer span.End()

	err = errors.Join(tx.tx.Rollback(ctx), db.release(ctx, tx))
	endSpan(span, err)
	if err != nil {
		return err
	}
	db.logger.Debug("transaction rolled back", "tx", tx.id)
	return nil
}

// release closes the transaction and session and returns to idle.
// Close errors are reported only for the session; closing an already
// finished transaction is a no-op for drivers.
func (db *Database) release(ctx context.Context, tx *activeTx) error {
	defer func() {
		db.mu.Lock()
		db.state = txIdle
		db.mu.Unlock()
	}()
	if err := tx.tx.Close(ctx); err != nil {
		db.logger.Debug("closing transaction", "tx", tx.id, "error", err)
	}
	if err := tx.session.Close(ctx); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// discardActive drops the active transaction, if any, without failing.
// Used when the connection underneath it is replaced.
func (db *Database) discardActive(ctx context.Context, reason string) {
	tx, err := db.takeActive()
	if err != nil {
		return
	}
	db.logger.Warn("discarding active transaction", "tx", tx.id, "reason", reason)
	if err := tx.tx.Rollback(ctx); err != nil {
		db.logger.Debug("rollback of discarded transaction", "tx", tx.id, "error", err)
	}
	if err := db.release(ctx, tx); err != nil {
		db.logger.Debug("release of discarded transaction", "tx", tx.id, "error", err)
	}
}

// InTransaction reports whether a transaction is active.
func (db *Database) InTransaction() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state == txActive
}

// currentTx returns the active transaction or nil.
func (db *Database) currentTx() *activeTx {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.active
}
