package ogm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orneryd/nornicogm/pkg/driver"
	"github.com/orneryd/nornicogm/pkg/resolve"
)

// Attribute keys
const (
	attrDBSystem    = "db.system"
	attrDBStatement = "db.statement"
	attrDBName      = "db.name"
	attrTxID        = "nornicogm.tx.id"
	attrAccessMode  = "nornicogm.access_mode"
	attrBookmarks   = "nornicogm.bookmarks"
	attrAttempt     = "nornicogm.attempt"
	attrRows        = "nornicogm.rows"
	attrInTx        = "nornicogm.in_transaction"
	attrErrorType   = "error.type"
)

func (db *Database) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(attrDBSystem, "neo4j"))
	if name := db.conn.Database(); name != "" {
		attrs = append(attrs, attribute.String(attrDBName, name))
	}
	return db.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrErrorType, errorType(err)))
		return
	}
	span.SetStatus(codes.Ok, "")
}

// errorType is a low-cardinality label for a failure.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUniqueProperty):
		return "unique_property"
	case errors.Is(err, ErrConstraintValidationFailed):
		return "constraint_validation_failed"
	case errors.Is(err, driver.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, driver.ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, resolve.ErrClassNotDefined):
		return "class_not_defined"
	}
	if se, ok := driver.AsServerError(err); ok {
		return se.Code
	}
	return fmt.Sprintf("%T", err)
}
