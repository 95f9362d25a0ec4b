package ogm

import (
	"context"
	"fmt"

	"github.com/orneryd/nornicogm/pkg/connection"
)

// Impersonate runs fn with every new session acting as user. Impersonation
// is an enterprise feature; on other editions ErrFeatureNotSupported is
// returned and fn is not called. The override is cleared when fn returns
// or panics.
func (db *Database) Impersonate(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	edition, err := db.DatabaseEdition(ctx)
	if err != nil {
		return err
	}
	if edition != connection.EditionEnterprise {
		return fmt.Errorf("impersonation on %q edition: %w", edition, ErrFeatureNotSupported)
	}

	db.conn.Impersonate(user)
	defer db.conn.ClearImpersonation()
	db.logger.Debug("impersonating", "user", user)
	return fn(ctx)
}
