// Package drivertest provides a scripted in-memory driver.Driver for tests.
//
// Every statement is routed to the Driver's Handler, which returns either a
// result or an error. Sessions, transactions and opens are recorded so tests
// can assert on handle lifecycles.
//
// Example:
//
//	fake := drivertest.New()
//	fake.Handler = drivertest.WithServerInfo("5.13.0", "enterprise",
//		func(c drivertest.Call) (*driver.Result, error) {
//			return drivertest.Rows([]string{"n"}, []any{int64(1)}), nil
//		})
//	opener := drivertest.NewOpener(fake)
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/orneryd/nornicogm/pkg/driver"
)

// ServerInfoQuery is the statement the connection layer uses to discover
// the server version and edition.
const ServerInfoQuery = "CALL dbms.components()"

// ErrClosed is returned when using a closed handle.
var ErrClosed = errors.New("drivertest: handle closed")

// Call describes one statement seen by the fake.
type Call struct {
	Query         string
	Params        map[string]any
	InTransaction bool
	Session       *Session
}

// Handler scripts the server's answer to a statement.
type Handler func(call Call) (*driver.Result, error)

// Rows builds a Result.
func Rows(keys []string, records ...[]any) *driver.Result {
	return &driver.Result{Keys: keys, Records: records}
}

// WithServerInfo answers the server info query with version and edition and
// delegates everything else to next (nil next returns empty results).
func WithServerInfo(version, edition string, next Handler) Handler {
	return func(call Call) (*driver.Result, error) {
		if strings.HasPrefix(call.Query, ServerInfoQuery) {
			return Rows([]string{"versions[0]", "edition"}, []any{version, edition}), nil
		}
		if next == nil {
			return Rows(nil), nil
		}
		return next(call)
	}
}

// Driver is a scripted driver.Driver.
type Driver struct {
	mu sync.Mutex

	// Handler answers statements. Nil returns empty results.
	Handler Handler
	// NewSessionErr, BeginErr, CommitErr, RollbackErr make the matching
	// operation fail.
	NewSessionErr error
	BeginErr      error
	CommitErr     error
	RollbackErr   error

	sessions []*Session
	calls    []Call
	commits  int
	closed   bool
}

// New returns an empty fake driver.
func New() *Driver {
	return &Driver{}
}

func (d *Driver) NewSession(_ context.Context, config driver.SessionConfig) (driver.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.NewSessionErr != nil {
		return nil, d.NewSessionErr
	}
	s := &Session{driver: d, Config: config}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *Driver) VerifyConnectivity(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

func (d *Driver) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Sessions returns every session opened so far.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Calls returns every statement seen so far, server info probes included.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Queries returns the statements seen so far, excluding server info probes.
func (d *Driver) Queries() []string {
	var out []string
	for _, c := range d.Calls() {
		if !strings.HasPrefix(c.Query, ServerInfoQuery) {
			out = append(out, c.Query)
		}
	}
	return out
}

// OpenSessions returns the number of sessions not yet closed.
func (d *Driver) OpenSessions() int {
	n := 0
	for _, s := range d.Sessions() {
		if !s.Closed() {
			n++
		}
	}
	return n
}

func (d *Driver) run(call Call) (*driver.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	h := d.Handler
	d.mu.Unlock()

	if h == nil {
		return Rows(nil), nil
	}
	return h(call)
}

func (d *Driver) nextBookmark() driver.Bookmarks {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commits++
	return driver.Bookmarks{fmt.Sprintf("fake:bookmark:%d", d.commits)}
}

// Session is a fake driver.Session.
type Session struct {
	driver *Driver
	Config driver.SessionConfig

	mu           sync.Mutex
	transactions []*Transaction
	bookmarks    driver.Bookmarks
	closed       bool
}

func (s *Session) Run(_ context.Context, query string, params map[string]any) (*driver.Result, error) {
	if s.Closed() {
		return nil, ErrClosed
	}
	return s.driver.run(Call{Query: query, Params: params, Session: s})
}

func (s *Session) BeginTransaction(context.Context) (driver.Transaction, error) {
	if s.Closed() {
		return nil, ErrClosed
	}
	s.driver.mu.Lock()
	beginErr := s.driver.BeginErr
	s.driver.mu.Unlock()
	if beginErr != nil {
		return nil, beginErr
	}

	tx := &Transaction{session: s}
	s.mu.Lock()
	s.transactions = append(s.transactions, tx)
	s.mu.Unlock()
	return tx, nil
}

func (s *Session) LastBookmarks() driver.Bookmarks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookmarks
}

func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Transactions returns the transactions begun on this session.
func (s *Session) Transactions() []*Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Transaction(nil), s.transactions...)
}

// Transaction is a fake driver.Transaction.
type Transaction struct {
	session *Session

	mu         sync.Mutex
	committed  bool
	rolledBack bool
	closed     bool
}

func (t *Transaction) Run(_ context.Context, query string, params map[string]any) (*driver.Result, error) {
	t.mu.Lock()
	done := t.closed || t.committed || t.rolledBack
	t.mu.Unlock()
	if done {
		return nil, ErrClosed
	}
	return t.session.driver.run(Call{Query: query, Params: params, InTransaction: true, Session: t.session})
}

func (t *Transaction) Commit(context.Context) error {
	d := t.session.driver
	d.mu.Lock()
	commitErr := d.CommitErr
	d.mu.Unlock()
	if commitErr != nil {
		return commitErr
	}

	t.mu.Lock()
	t.committed = true
	t.mu.Unlock()

	bm := d.nextBookmark()
	t.session.mu.Lock()
	t.session.bookmarks = bm
	t.session.mu.Unlock()
	return nil
}

func (t *Transaction) Rollback(context.Context) error {
	d := t.session.driver
	d.mu.Lock()
	rollbackErr := d.RollbackErr
	d.mu.Unlock()
	if rollbackErr != nil {
		return rollbackErr
	}

	t.mu.Lock()
	t.rolledBack = true
	t.mu.Unlock()
	return nil
}

func (t *Transaction) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Committed reports whether Commit succeeded.
func (t *Transaction) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// RolledBack reports whether Rollback succeeded.
func (t *Transaction) RolledBack() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolledBack
}

// Closed reports whether Close was called.
func (t *Transaction) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Opener hands out fake drivers in order; the last one is reused once the
// list is exhausted.
type Opener struct {
	mu      sync.Mutex
	drivers []*Driver
	// Err makes every Open fail.
	Err error

	targets []string
	options []driver.Options
}

// NewOpener returns an Opener over drivers. With no drivers a fresh one is
// created per Open.
func NewOpener(drivers ...*Driver) *Opener {
	return &Opener{drivers: drivers}
}

// Open implements driver.Opener.
func (o *Opener) Open(target string, opts driver.Options) (driver.Driver, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	o.targets = append(o.targets, target)
	o.options = append(o.options, opts)

	if len(o.drivers) == 0 {
		return New(), nil
	}
	idx := len(o.targets) - 1
	if idx >= len(o.drivers) {
		idx = len(o.drivers) - 1
	}
	return o.drivers[idx], nil
}

// Opens returns the number of successful Open calls.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.targets)
}

// Targets returns the targets passed to Open.
func (o *Opener) Targets() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.targets...)
}

// Options returns the options passed to Open.
func (o *Opener) Options() []driver.Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]driver.Options(nil), o.options...)
}
