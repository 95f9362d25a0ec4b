package ogm

import (
	"context"
	"fmt"
	"strings"
)

// Administrative statements
const (
	showIndexesQuery     = "SHOW INDEXES"
	showConstraintsQuery = "SHOW CONSTRAINTS"
	clearNodesQuery      = "MATCH (a) CALL { WITH a DETACH DELETE a } IN TRANSACTIONS OF 5000 rows"
)

// indexTypeLookup marks the token lookup indexes every database carries.
const indexTypeLookup = "LOOKUP"

// ListIndexes returns one record per index as reported by SHOW INDEXES.
// With excludeTokenLookup the built-in LOOKUP indexes are left out.
func (db *Database) ListIndexes(ctx context.Context, excludeTokenLookup bool) ([]map[string]any, error) {
	res, err := db.Query(ctx, showIndexesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	records := res.Records()
	if !excludeTokenLookup {
		return records, nil
	}
	out := records[:0]
	for _, rec := range records {
		if t, _ := rec["type"].(string); t == indexTypeLookup {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListConstraints returns one record per constraint as reported by
// SHOW CONSTRAINTS.
func (db *Database) ListConstraints(ctx context.Context) ([]map[string]any, error) {
	res, err := db.Query(ctx, showConstraintsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("listing constraints: %w", err)
	}
	return res.Records(), nil
}

// DropConstraints drops every constraint and returns the dropped names.
func (db *Database) DropConstraints(ctx context.Context) ([]string, error) {
	constraints, err := db.ListConstraints(ctx)
	if err != nil {
		return nil, err
	}
	return db.dropByName(ctx, "CONSTRAINT", constraints)
}

// DropIndexes drops every index except the token lookup indexes and
// returns the dropped names.
func (db *Database) DropIndexes(ctx context.Context) ([]string, error) {
	indexes, err := db.ListIndexes(ctx, true)
	if err != nil {
		return nil, err
	}
	return db.dropByName(ctx, "INDEX", indexes)
}

func (db *Database) dropByName(ctx context.Context, kind string, records []map[string]any) ([]string, error) {
	var dropped []string
	for _, rec := range records {
		name, _ := rec["name"].(string)
		if name == "" {
			continue
		}
		if _, err := db.Query(ctx, fmt.Sprintf("DROP %s %s", kind, quoteName(name)), nil); err != nil {
			return dropped, fmt.Errorf("dropping %s %s: %w", strings.ToLower(kind), name, err)
		}
		db.logger.Info("dropped", "kind", strings.ToLower(kind), "name", name)
		dropped = append(dropped, name)
	}
	return dropped, nil
}

// quoteName backtick-quotes a schema object name for Cypher.
func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ChangePassword sets the password of user. The statement is sent as is,
// so user and password must not contain quotes.
func (db *Database) ChangePassword(ctx context.Context, user, newPassword string) error {
	query := fmt.Sprintf("ALTER USER %s SET PASSWORD '%s'", user, newPassword)
	if _, err := db.Query(ctx, query, nil, withStatementLabel("ALTER USER "+user+" SET PASSWORD ***")); err != nil {
		return fmt.Errorf("changing password for %s: %w", user, err)
	}
	return nil
}

// ClearDatabase deletes every node and relationship in batches, then
// optionally drops all constraints and indexes.
func (db *Database) ClearDatabase(ctx context.Context, clearConstraints, clearIndexes bool) error {
	if _, err := db.Query(ctx, clearNodesQuery, nil); err != nil {
		return fmt.Errorf("clearing database: %w", err)
	}
	if clearConstraints {
		if _, err := db.DropConstraints(ctx); err != nil {
			return err
		}
	}
	if clearIndexes {
		if _, err := db.DropIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
