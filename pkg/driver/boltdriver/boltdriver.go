// Package boltdriver implements the driver contract on top of the official
// Neo4j Go driver (v5), which speaks Bolt to both Neo4j and NornicDB.
//
// Results are buffered with Collect and converted to the graph package's
// value types. Native errors are translated into driver.ServerError and the
// driver.ErrSessionExpired / driver.ErrServiceUnavailable classes while
// remaining reachable through errors.As.
package boltdriver

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/orneryd/nornicogm/pkg/driver"
)

// ErrNoCertificates is returned when a trusted certificate file holds no PEM
// certificates.
var ErrNoCertificates = errors.New("no certificates found")

// Open implements driver.Opener.
func Open(target string, opts driver.Options) (driver.Driver, error) {
	target, err := effectiveTarget(target, opts)
	if err != nil {
		return nil, err
	}

	var roots *x509.CertPool
	if opts.Encrypted && opts.TrustStrategy == driver.TrustCustomCAs {
		roots, err = loadRootCAs(opts.TrustedCertificateFiles)
		if err != nil {
			return nil, err
		}
	}

	d, err := neo4j.NewDriverWithContext(target,
		neo4j.BasicAuth(opts.Username, opts.Password, ""),
		configure(opts, roots))
	if err != nil {
		return nil, fmt.Errorf("opening driver for %s: %w", target, translateError(err))
	}
	return &boltDriver{driver: d}, nil
}

// effectiveTarget applies the Encrypted option to schemes that do not carry
// their own TLS suffix. TrustAll maps to the self-signed variant.
func effectiveTarget(target string, opts driver.Options) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}
	if !opts.Encrypted || strings.Contains(u.Scheme, "+s") {
		return target, nil
	}
	switch opts.TrustStrategy {
	case driver.TrustAll:
		u.Scheme += "+ssc"
	default:
		u.Scheme += "+s"
	}
	return u.String(), nil
}

func configure(opts driver.Options, roots *x509.CertPool) func(*neo4j.Config) {
	return func(c *neo4j.Config) {
		if opts.ConnectionAcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = opts.ConnectionAcquisitionTimeout
		}
		if opts.ConnectionTimeout > 0 {
			c.SocketConnectTimeout = opts.ConnectionTimeout
		}
		c.SocketKeepalive = opts.KeepAlive
		if opts.MaxConnectionLifetime > 0 {
			c.MaxConnectionLifetime = opts.MaxConnectionLifetime
		}
		if opts.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnectionPoolSize
		}
		if opts.MaxTransactionRetryTime > 0 {
			c.MaxTransactionRetryTime = opts.MaxTransactionRetryTime
		}
		if opts.UserAgent != "" {
			c.UserAgent = opts.UserAgent
		}
		if roots != nil {
			c.RootCAs = roots
		}
		if opts.AddressResolver != nil {
			c.AddressResolver = addressResolver(opts.AddressResolver)
		}
	}
}

// addressResolver adapts a "host:port" resolver to the driver's hook.
// Entries without a port default to 7687.
func addressResolver(resolve func(string) []string) func(neo4j.ServerAddress) []neo4j.ServerAddress {
	return func(addr neo4j.ServerAddress) []neo4j.ServerAddress {
		resolved := resolve(net.JoinHostPort(addr.Hostname(), addr.Port()))
		out := make([]neo4j.ServerAddress, 0, len(resolved))
		for _, hp := range resolved {
			if _, _, err := net.SplitHostPort(hp); err != nil {
				hp = net.JoinHostPort(hp, "7687")
			}
			out = append(out, &url.URL{Host: hp})
		}
		return out
	}
}

func loadRootCAs(files []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, f := range files {
		pem, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading trusted certificate %s: %w", f, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%s: %w", f, ErrNoCertificates)
		}
	}
	return pool, nil
}

type boltDriver struct {
	driver neo4j.DriverWithContext
}

func (d *boltDriver) NewSession(ctx context.Context, config driver.SessionConfig) (driver.Session, error) {
	return &boltSession{session: d.driver.NewSession(ctx, sessionConfig(config))}, nil
}

func (d *boltDriver) VerifyConnectivity(ctx context.Context) error {
	return translateError(d.driver.VerifyConnectivity(ctx))
}

func (d *boltDriver) Close(ctx context.Context) error {
	return translateError(d.driver.Close(ctx))
}

func sessionConfig(c driver.SessionConfig) neo4j.SessionConfig {
	out := neo4j.SessionConfig{
		DatabaseName:     c.Database,
		ImpersonatedUser: c.ImpersonatedUser,
	}
	switch c.AccessMode {
	case driver.AccessModeRead:
		out.AccessMode = neo4j.AccessModeRead
	case driver.AccessModeWrite:
		out.AccessMode = neo4j.AccessModeWrite
	}
	if len(c.Bookmarks) > 0 {
		out.Bookmarks = neo4j.BookmarksFromRawValues(c.Bookmarks...)
	}
	return out
}

type boltSession struct {
	session neo4j.SessionWithContext
}

func (s *boltSession) Run(ctx context.Context, query string, params map[string]any) (*driver.Result, error) {
	res, err := s.session.Run(ctx, query, params)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(ctx, res)
}

func (s *boltSession) BeginTransaction(ctx context.Context) (driver.Transaction, error) {
	tx, err := s.session.BeginTransaction(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return &boltTransaction{tx: tx}, nil
}

func (s *boltSession) LastBookmarks() driver.Bookmarks {
	raw := neo4j.BookmarksToRawValues(s.session.LastBookmarks())
	if len(raw) == 0 {
		return nil
	}
	return driver.Bookmarks(raw)
}

func (s *boltSession) Close(ctx context.Context) error {
	return translateError(s.session.Close(ctx))
}

type boltTransaction struct {
	tx neo4j.ExplicitTransaction
}

func (t *boltTransaction) Run(ctx context.Context, query string, params map[string]any) (*driver.Result, error) {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(ctx, res)
}

func (t *boltTransaction) Commit(ctx context.Context) error {
	return translateError(t.tx.Commit(ctx))
}

func (t *boltTransaction) Rollback(ctx context.Context) error {
	return translateError(t.tx.Rollback(ctx))
}

func (t *boltTransaction) Close(ctx context.Context) error {
	return translateError(t.tx.Close(ctx))
}

func collect(ctx context.Context, res neo4j.ResultWithContext) (*driver.Result, error) {
	keys, err := res.Keys()
	if err != nil {
		return nil, translateError(err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	out := &driver.Result{Keys: keys, Records: make([][]any, len(records))}
	for i, rec := range records {
		out.Records[i] = convertRow(rec.Values)
	}
	return out, nil
}

// translateError maps native driver failures onto the driver package's
// error classes. Server errors keep the native error as their cause.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		se := &driver.ServerError{Code: neoErr.Code, Message: neoErr.Msg, Err: err}
		switch neoErr.Code {
		case driver.CodeNotALeader, driver.CodeForbiddenOnReadOnlyDB:
			return fmt.Errorf("%w: %w", driver.ErrSessionExpired, se)
		case driver.CodeDatabaseUnavailable:
			return fmt.Errorf("%w: %w", driver.ErrServiceUnavailable, se)
		}
		return se
	}
	if neo4j.IsConnectivityError(err) {
		// The pooled connection is gone: a fresh one may succeed, but the
		// server may also be down altogether.
		return fmt.Errorf("%w: %w: %w", driver.ErrSessionExpired, driver.ErrServiceUnavailable, err)
	}
	return err
}
