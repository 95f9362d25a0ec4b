package ogm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/orneryd/nornicogm/pkg/driver"
)

// Result holds the rows of a query and their column names.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Records returns one column-name-to-value map per row.
func (r *Result) Records() []map[string]any {
	return RowsToRecords(r.Columns, r.Rows)
}

// RowsToRecords zips each row with columns. Extra cells without a column
// name are dropped.
func RowsToRecords(columns []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

type queryOptions struct {
	handleUnique         bool
	retryOnSessionExpire bool
	resolveObjects       bool
	// statement replaces the query text in spans and logs.
	statement string
}

// QueryOption tunes a single Query call.
type QueryOption func(*queryOptions)

// WithHandleUnique reports uniqueness violations as UniquePropertyError
// (the default). When false they surface as ConstraintValidationError.
func WithHandleUnique(handle bool) QueryOption {
	return func(o *queryOptions) { o.handleUnique = handle }
}

// WithRetryOnSessionExpire reconnects and re-runs the query once when the
// session expired underneath it.
func WithRetryOnSessionExpire(retry bool) QueryOption {
	return func(o *queryOptions) { o.retryOnSessionExpire = retry }
}

// WithResolveObjects resolves nodes, relationships and paths in the result
// through the registry.
func WithResolveObjects(resolve bool) QueryOption {
	return func(o *queryOptions) { o.resolveObjects = resolve }
}

// withStatementLabel hides the query text from spans and logs.
func withStatementLabel(label string) QueryOption {
	return func(o *queryOptions) { o.statement = label }
}

// Query runs a Cypher statement. Inside an active transaction it runs on
// that transaction, otherwise on a session opened for this call only.
//
// Constraint violations are reported as UniquePropertyError or
// ConstraintValidationError. With WithRetryOnSessionExpire, an expired
// session triggers exactly one reconnect and re-run; a second failure is
// returned as is. Inside a transaction the statement is not re-run: the
// transaction is discarded, the connection re-established and
// ErrTransactionLost returned. Other errors are returned unchanged.
func (db *Database) Query(ctx context.Context, query string, params map[string]any, opts ...QueryOption) (*Result, error) {
	o := queryOptions{handleUnique: true}
	for _, opt := range opts {
		opt(&o)
	}
	if err := db.ensureConnection(ctx); err != nil {
		return nil, err
	}

	maxAttempts := 1
	if o.retryOnSessionExpire {
		maxAttempts = 2
	}
	for attempt := 1; ; attempt++ {
		tx := db.currentTx()
		res, err := db.queryOnce(ctx, tx, query, params, o, attempt)
		if err == nil {
			return res, nil
		}
		if attempt >= maxAttempts || !errors.Is(err, driver.ErrSessionExpired) {
			return nil, err
		}
		db.logger.Warn("session expired, reconnecting", "attempt", attempt, "error", err)
		if rerr := db.reconnect(ctx); rerr != nil {
			return nil, fmt.Errorf("reconnecting after expired session: %w", errors.Join(rerr, err))
		}
		if tx != nil {
			// Earlier statements of the transaction are gone; re-running
			// this one alone would commit it on its own.
			return nil, fmt.Errorf("%w (tx %s): %w", ErrTransactionLost, tx.id, err)
		}
	}
}

func (db *Database) queryOnce(ctx context.Context, tx *activeTx, query string, params map[string]any, o queryOptions, attempt int) (res *Result, err error) {
	statement := query
	if o.statement != "" {
		statement = o.statement
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrDBStatement, statement),
		attribute.Int(attrAttempt, attempt),
		attribute.Bool(attrInTx, tx != nil),
	}
	if tx != nil {
		attrs = append(attrs, attribute.String(attrTxID, tx.id))
	}
	ctx, span := db.startSpan(ctx, "nornicogm.query", attrs...)
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.Int(attrRows, len(res.Rows)))
		}
		endSpan(span, err)
		span.End()
	}()

	start := time.Now()
	raw, err := db.run(ctx, tx, query, params)
	elapsed := time.Since(start)
	if err != nil {
		return nil, classifyQueryError(err, o.handleUnique)
	}

	rows := raw.Records
	if o.resolveObjects {
		rows, err = db.resolver.ResolveRows(rows)
		if err != nil {
			return nil, err
		}
	}
	db.logTiming(statement, params, elapsed)
	return &Result{Columns: raw.Keys, Rows: rows}, nil
}

func (db *Database) run(ctx context.Context, tx *activeTx, query string, params map[string]any) (*driver.Result, error) {
	if tx != nil {
		return tx.tx.Run(ctx, query, params)
	}
	sess, err := db.conn.Session(ctx, driver.SessionConfig{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			db.logger.Debug("closing query session", "error", cerr)
		}
	}()
	return sess.Run(ctx, query, params)
}

// logTiming reports queries slower than the configured threshold when
// Cypher debugging is enabled. It logs at info level so that enabling
// CypherDebug alone is enough.
func (db *Database) logTiming(query string, params map[string]any, elapsed time.Duration) {
	debug := db.cfg.Debug
	if !debug.CypherDebug || elapsed <= debug.SlowQueryThreshold {
		return
	}
	db.logger.Info("cypher query",
		"query", query,
		"params", params,
		"took", elapsed,
	)
}
