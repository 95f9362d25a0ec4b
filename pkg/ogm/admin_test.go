package ogm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicogm/pkg/driver"
	"github.com/orneryd/nornicogm/pkg/driver/drivertest"
)

// schemaHandler answers SHOW statements with a fixed schema.
func schemaHandler(c drivertest.Call) (*driver.Result, error) {
	switch c.Query {
	case showIndexesQuery:
		return drivertest.Rows([]string{"name", "type", "labelsOrTypes"},
			[]any{"index_343aff4e", "LOOKUP", nil},
			[]any{"person_name", "RANGE", []any{"Person"}},
			[]any{"odd`name", "TEXT", []any{"Doc"}},
		), nil
	case showConstraintsQuery:
		return drivertest.Rows([]string{"name", "type"},
			[]any{"person_email_unique", "UNIQUENESS"},
		), nil
	}
	return drivertest.Rows(nil), nil
}

func TestListIndexes(t *testing.T) {
	env := newTestEnv(t, schemaHandler)
	ctx := context.Background()

	all, err := env.db.ListIndexes(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "LOOKUP", all[0]["type"])
	assert.Equal(t, []any{"Person"}, all[1]["labelsOrTypes"])

	filtered, err := env.db.ListIndexes(ctx, true)
	require.NoError(t, err)
	var names []string
	for _, rec := range filtered {
		names = append(names, rec["name"].(string))
	}
	assert.Equal(t, []string{"person_name", "odd`name"}, names)
}

func TestListConstraints(t *testing.T) {
	env := newTestEnv(t, schemaHandler)

	got, err := env.db.ListConstraints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "person_email_unique", "type": "UNIQUENESS"}}, got)
}

func TestListIndexes_Error(t *testing.T) {
	boom := errors.New("boom")
	env := newTestEnv(t, func(drivertest.Call) (*driver.Result, error) { return nil, boom })

	_, err := env.db.ListIndexes(context.Background(), true)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "listing indexes")
}

func TestDropIndexesAndConstraints(t *testing.T) {
	env := newTestEnv(t, schemaHandler)
	ctx := context.Background()

	dropped, err := env.db.DropIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"person_name", "odd`name"}, dropped)

	dropped, err = env.db.DropConstraints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"person_email_unique"}, dropped)

	assert.Equal(t, []string{
		"SHOW INDEXES",
		"DROP INDEX `person_name`",
		"DROP INDEX `odd``name`",
		"SHOW CONSTRAINTS",
		"DROP CONSTRAINT `person_email_unique`",
	}, env.fake.Queries())
	assert.Contains(t, env.logs.String(), "name=person_email_unique")
}

func TestDropIndexes_StopsOnError(t *testing.T) {
	boom := errors.New("index in use")
	env := newTestEnv(t, func(c drivertest.Call) (*driver.Result, error) {
		if strings.HasPrefix(c.Query, "DROP INDEX `odd") {
			return nil, boom
		}
		return schemaHandler(c)
	})

	dropped, err := env.db.DropIndexes(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"person_name"}, dropped)
}

func TestClearDatabase(t *testing.T) {
	tests := []struct {
		name        string
		constraints bool
		indexes     bool
		want        []string
	}{
		{name: "nodes only", want: []string{clearNodesQuery}},
		{
			name:        "everything",
			constraints: true,
			indexes:     true,
			want: []string{
				clearNodesQuery,
				"SHOW CONSTRAINTS",
				"DROP CONSTRAINT `person_email_unique`",
				"SHOW INDEXES",
				"DROP INDEX `person_name`",
				"DROP INDEX `odd``name`",
			},
		},
		{
			name:    "indexes only",
			indexes: true,
			want: []string{
				clearNodesQuery,
				"SHOW INDEXES",
				"DROP INDEX `person_name`",
				"DROP INDEX `odd``name`",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, schemaHandler)
			require.NoError(t, env.db.ClearDatabase(context.Background(), tt.constraints, tt.indexes))
			assert.Equal(t, tt.want, env.fake.Queries())
		})
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.Debug.CypherDebug = true

	require.NoError(t, env.db.ChangePassword(context.Background(), "alice", "s3cret"))
	assert.Equal(t, []string{"ALTER USER alice SET PASSWORD 's3cret'"}, env.fake.Queries())

	assert.NotContains(t, env.logs.String(), "s3cret")
	for _, s := range env.spans.Ended() {
		for _, kv := range s.Attributes() {
			assert.NotContains(t, kv.Value.Emit(), "s3cret")
		}
	}
}

func TestChangePassword_Error(t *testing.T) {
	env := newTestEnv(t, func(drivertest.Call) (*driver.Result, error) {
		return nil, &driver.ServerError{Code: "Neo.ClientError.General.InvalidArguments", Message: "Old password and new password cannot be the same."}
	})

	err := env.db.ChangePassword(context.Background(), "alice", "same")
	require.Error(t, err)
	se, ok := driver.AsServerError(err)
	require.True(t, ok)
	assert.True(t, se.IsClientError())
}

func TestImpersonate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	err := env.db.Impersonate(ctx, "bob", func(ctx context.Context) error {
		assert.Equal(t, "bob", env.db.Connection().ImpersonatedUser())
		_, err := env.db.Query(ctx, "SHOW CURRENT USER", nil)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "bob", lastSession(t, env.fake).Config.ImpersonatedUser)
	assert.Empty(t, env.db.Connection().ImpersonatedUser())

	_, err = env.db.Query(ctx, "RETURN 1", nil)
	require.NoError(t, err)
	assert.Empty(t, lastSession(t, env.fake).Config.ImpersonatedUser)
}

func TestImpersonate_ClearedOnError(t *testing.T) {
	env := newTestEnv(t, nil)
	boom := errors.New("boom")

	err := env.db.Impersonate(context.Background(), "bob", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Empty(t, env.db.Connection().ImpersonatedUser())

	assert.Panics(t, func() {
		_ = env.db.Impersonate(context.Background(), "bob", func(context.Context) error { panic("boom") })
	})
	assert.Empty(t, env.db.Connection().ImpersonatedUser())
}

func TestImpersonate_CommunityEdition(t *testing.T) {
	env := newTestEnvEdition(t, "5.13.0", "community", nil)
	called := false

	err := env.db.Impersonate(context.Background(), "bob", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrFeatureNotSupported)
	assert.False(t, called)
	assert.Empty(t, env.db.Connection().ImpersonatedUser())
}
