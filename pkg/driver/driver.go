// Package driver defines the narrow contract nornicogm needs from a Bolt
// driver: sessions, explicit transactions, auto-commit runs and bookmarks.
//
// The production implementation lives in package boltdriver and wraps the
// official Neo4j Go driver. Package drivertest provides a scripted fake for
// tests. Values in a Result use the types of package graph for structural
// values so that callers never depend on a specific driver package.
package driver

import (
	"context"
	"time"
)

// AccessMode selects read or write routing for a session.
type AccessMode int

const (
	// AccessModeUnspecified lets the driver pick (write for most drivers).
	AccessModeUnspecified AccessMode = iota
	AccessModeWrite
	AccessModeRead
)

func (m AccessMode) String() string {
	switch m {
	case AccessModeWrite:
		return "WRITE"
	case AccessModeRead:
		return "READ"
	default:
		return "UNSPECIFIED"
	}
}

// Bookmarks are opaque tokens identifying points in the server's
// transaction history. A transaction started with bookmarks observes every
// write causally preceding them.
type Bookmarks []string

// SessionConfig configures a new session.
type SessionConfig struct {
	AccessMode AccessMode
	Bookmarks  Bookmarks
	// Database selects the target database. Empty means the server default.
	Database string
	// ImpersonatedUser runs the session under another user's identity.
	ImpersonatedUser string
}

// Result is a fully buffered query result.
type Result struct {
	// Keys are the column names in order.
	Keys []string
	// Records hold one []any per row, aligned with Keys.
	Records [][]any
}

// Runner runs a single Cypher statement.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*Result, error)
}

// Transaction is an explicit transaction bound to one session.
type Transaction interface {
	Runner
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Close releases the transaction. Closing an open transaction rolls it back.
	Close(ctx context.Context) error
}

// Session is a logical connection context. Run executes an auto-commit
// statement.
type Session interface {
	Runner
	BeginTransaction(ctx context.Context) (Transaction, error)
	// LastBookmarks returns the bookmarks of the last committed transaction.
	LastBookmarks() Bookmarks
	Close(ctx context.Context) error
}

// Driver owns the connection pool.
type Driver interface {
	NewSession(ctx context.Context, config SessionConfig) (Session, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// TrustStrategy selects which certificates are trusted when encryption is
// enabled on a scheme that does not carry its own TLS suffix.
type TrustStrategy string

const (
	TrustSystemCAs TrustStrategy = "system"
	TrustAll       TrustStrategy = "all"
	TrustCustomCAs TrustStrategy = "custom"
)

// Options configures a new Driver.
type Options struct {
	Username string
	Password string

	ConnectionAcquisitionTimeout time.Duration
	ConnectionTimeout            time.Duration
	KeepAlive                    bool
	MaxConnectionLifetime        time.Duration
	MaxConnectionPoolSize        int
	MaxTransactionRetryTime      time.Duration
	UserAgent                    string

	// AddressResolver maps the initial router address ("host:port") to the
	// addresses actually dialled. Only used by routing schemes.
	AddressResolver func(address string) []string

	// Encrypted and the trust settings only apply to schemes without a
	// "+s"/"+ssc" suffix; those schemes carry their own TLS settings.
	Encrypted               bool
	TrustStrategy           TrustStrategy
	TrustedCertificateFiles []string
}

// Opener opens a driver against target ("scheme://host:port").
type Opener func(target string, opts Options) (Driver, error)
