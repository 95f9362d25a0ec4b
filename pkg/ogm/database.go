// Package ogm is the transaction and query layer of nornicogm.
//
// A Database bundles one connection (see package connection) with at most
// one active explicit transaction. Queries run inside the active
// transaction when there is one, otherwise in a throw-away session. Raw
// results can be resolved into domain instances through a shared
// registry.Registry.
//
// A Database is the unit of isolation: give each worker goroutine its own
// Database and share the Registry between them.
//
// Example:
//
//	reg := registry.New()
//	_ = reg.RegisterNode(personDescriptor, "Person")
//
//	db := ogm.New(ogm.WithRegistry(reg))
//	defer db.Close(ctx)
//
//	err := db.WriteTransaction(ctx, func(ctx context.Context) error {
//		_, err := db.Query(ctx, "CREATE (p:Person {name: $name})", map[string]any{"name": "Alice"})
//		return err
//	})
//
//	res, err := db.Query(ctx, "MATCH (p:Person) RETURN p", nil, ogm.WithResolveObjects(true))
package ogm

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orneryd/nornicogm/pkg/config"
	"github.com/orneryd/nornicogm/pkg/connection"
	"github.com/orneryd/nornicogm/pkg/driver"
	"github.com/orneryd/nornicogm/pkg/driver/boltdriver"
	"github.com/orneryd/nornicogm/pkg/registry"
	"github.com/orneryd/nornicogm/pkg/resolve"
)

const instrumentationName = "github.com/orneryd/nornicogm/pkg/ogm"

// Database is a connection plus transaction context.
type Database struct {
	cfg         *config.Config
	logger      *slog.Logger
	tracer      trace.Tracer
	opener      driver.Opener
	reg         *registry.Registry
	relFallback registry.Descriptor

	conn     *connection.Manager
	resolver *resolve.Resolver

	mu     sync.Mutex
	state  txState
	active *activeTx
	// pending bookmarks are consumed by the next transaction scope.
	pending driver.Bookmarks
	// last holds the bookmarks of the last transaction committed by a scope.
	last driver.Bookmarks
}

// Option configures a Database.
type Option func(*Database)

// WithConfig sets the configuration. Defaults to config.LoadFromEnv().
func WithConfig(cfg *config.Config) Option {
	return func(db *Database) {
		if cfg != nil {
			db.cfg = cfg
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(db *Database) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer. Defaults to a tracer from the
// global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(db *Database) {
		if tracer != nil {
			db.tracer = tracer
		}
	}
}

// WithOpener replaces the Bolt driver, mostly for tests.
func WithOpener(opener driver.Opener) Option {
	return func(db *Database) {
		if opener != nil {
			db.opener = opener
		}
	}
}

// WithRegistry sets the class registry used for object resolution.
func WithRegistry(reg *registry.Registry) Option {
	return func(db *Database) {
		if reg != nil {
			db.reg = reg
		}
	}
}

// WithRelationshipFallback sets the descriptor used for path relationships
// whose type is not registered.
func WithRelationshipFallback(d registry.Descriptor) Option {
	return func(db *Database) {
		db.relFallback = d
	}
}

// New creates a Database. No connection is made until the first operation
// or an explicit SetConnection.
func New(opts ...Option) *Database {
	db := &Database{
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
		opener: boltdriver.Open,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.cfg == nil {
		db.cfg = config.LoadFromEnv()
	}
	if db.reg == nil {
		db.reg = registry.New()
	}
	db.conn = connection.NewManager(db.cfg, db.opener, db.logger)
	db.resolver = resolve.New(db.reg, resolve.Options{RelationshipFallback: db.relFallback})
	return db
}

// SetConnection connects to url, replacing the current connection. Any
// active transaction is discarded.
func (db *Database) SetConnection(ctx context.Context, url string) error {
	db.discardActive(ctx, "connection reset")
	return db.conn.Configure(ctx, url)
}

// SetDriver installs an already opened driver. Any active transaction is
// discarded.
func (db *Database) SetDriver(ctx context.Context, d driver.Driver, database string) error {
	db.discardActive(ctx, "connection reset")
	return db.conn.ConfigureDriver(ctx, d, database)
}

// ensureConnection connects with the configured default URL when no
// connection exists yet. Every public operation calls it first.
func (db *Database) ensureConnection(ctx context.Context) error {
	return db.conn.EnsureConnection(ctx)
}

// reconnect re-establishes the connection from its last known URL.
func (db *Database) reconnect(ctx context.Context) error {
	db.discardActive(ctx, "reconnecting")
	return db.conn.Reconnect(ctx)
}

// Connection exposes the connection manager.
func (db *Database) Connection() *connection.Manager { return db.conn }

// Registry returns the class registry.
func (db *Database) Registry() *registry.Registry { return db.reg }

// Config returns the configuration in use.
func (db *Database) Config() *config.Config { return db.cfg }

// DatabaseVersion returns the server version, "" while the server is
// unreachable.
func (db *Database) DatabaseVersion(ctx context.Context) (string, error) {
	return db.conn.DatabaseVersion(ctx)
}

// DatabaseEdition returns the server edition, "" while the server is
// unreachable.
func (db *Database) DatabaseEdition(ctx context.Context) (string, error) {
	return db.conn.DatabaseEdition(ctx)
}

// IDFunction returns "id" on 4.x servers and "elementId" otherwise, for
// building identity lookups in Cypher.
func (db *Database) IDFunction(ctx context.Context) (string, error) {
	return db.conn.IDFunction(ctx)
}

// Close rolls back any active transaction and closes the connection.
func (db *Database) Close(ctx context.Context) error {
	db.discardActive(ctx, "closing")
	return db.conn.Close(ctx)
}
