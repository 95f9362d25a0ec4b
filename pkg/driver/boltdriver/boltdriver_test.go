package boltdriver

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicogm/pkg/driver"
	"github.com/orneryd/nornicogm/pkg/graph"
)

func TestEffectiveTarget(t *testing.T) {
	tests := []struct {
		name   string
		target string
		opts   driver.Options
		want   string
	}{
		{"plain", "bolt://localhost:7687", driver.Options{}, "bolt://localhost:7687"},
		{"encrypted system", "bolt://localhost:7687", driver.Options{Encrypted: true, TrustStrategy: driver.TrustSystemCAs}, "bolt+s://localhost:7687"},
		{"encrypted custom", "neo4j://db:7687", driver.Options{Encrypted: true, TrustStrategy: driver.TrustCustomCAs}, "neo4j+s://db:7687"},
		{"encrypted all", "neo4j://db:7687", driver.Options{Encrypted: true, TrustStrategy: driver.TrustAll}, "neo4j+ssc://db:7687"},
		{"suffix wins", "bolt+ssc://db:7687", driver.Options{Encrypted: true, TrustStrategy: driver.TrustSystemCAs}, "bolt+ssc://db:7687"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := effectiveTarget(tt.target, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigure(t *testing.T) {
	var c neo4j.Config
	configure(driver.Options{
		ConnectionAcquisitionTimeout: time.Minute,
		ConnectionTimeout:            30 * time.Second,
		KeepAlive:                    true,
		MaxConnectionLifetime:        time.Hour,
		MaxConnectionPoolSize:        100,
		MaxTransactionRetryTime:      30 * time.Second,
		UserAgent:                    "nornicogm/test",
	}, nil)(&c)

	assert.Equal(t, time.Minute, c.ConnectionAcquisitionTimeout)
	assert.Equal(t, 30*time.Second, c.SocketConnectTimeout)
	assert.True(t, c.SocketKeepalive)
	assert.Equal(t, time.Hour, c.MaxConnectionLifetime)
	assert.Equal(t, 100, c.MaxConnectionPoolSize)
	assert.Equal(t, 30*time.Second, c.MaxTransactionRetryTime)
	assert.Equal(t, "nornicogm/test", c.UserAgent)
	assert.Nil(t, c.RootCAs)
	assert.Nil(t, c.AddressResolver)
}

func TestAddressResolver(t *testing.T) {
	var seen string
	hook := addressResolver(func(addr string) []string {
		seen = addr
		return []string{"core1:7688", "core2"}
	})

	got := hook(&url.URL{Host: "cluster.local:7687"})
	assert.Equal(t, "cluster.local:7687", seen)
	require.Len(t, got, 2)
	assert.Equal(t, "core1", got[0].Hostname())
	assert.Equal(t, "7688", got[0].Port())
	assert.Equal(t, "core2", got[1].Hostname())
	assert.Equal(t, "7687", got[1].Port())
}

func TestLoadRootCAs_Errors(t *testing.T) {
	_, err := loadRootCAs([]string{filepath.Join(t.TempDir(), "missing.pem")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(junk, []byte("not a certificate"), 0o600))
	_, err = loadRootCAs([]string{junk})
	assert.ErrorIs(t, err, ErrNoCertificates)
}

func TestOpen_CustomCAsWithoutFiles(t *testing.T) {
	_, err := Open("bolt://localhost:7687", driver.Options{
		Encrypted:               true,
		TrustStrategy:           driver.TrustCustomCAs,
		TrustedCertificateFiles: []string{filepath.Join(t.TempDir(), "none.pem")},
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSessionConfig(t *testing.T) {
	got := sessionConfig(driver.SessionConfig{
		AccessMode:       driver.AccessModeRead,
		Bookmarks:        driver.Bookmarks{"bm:1", "bm:2"},
		Database:         "movies",
		ImpersonatedUser: "bob",
	})
	assert.Equal(t, neo4j.AccessModeRead, got.AccessMode)
	assert.Equal(t, "movies", got.DatabaseName)
	assert.Equal(t, "bob", got.ImpersonatedUser)
	assert.Equal(t, []string{"bm:1", "bm:2"}, neo4j.BookmarksToRawValues(got.Bookmarks))

	got = sessionConfig(driver.SessionConfig{AccessMode: driver.AccessModeWrite})
	assert.Equal(t, neo4j.AccessModeWrite, got.AccessMode)
	assert.Nil(t, got.Bookmarks)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	t.Run("constraint violation", func(t *testing.T) {
		native := &neo4j.Neo4jError{Code: driver.CodeConstraintValidationFailed, Msg: "Node(1) already exists with label `Person`"}
		err := translateError(native)

		se, ok := driver.AsServerError(err)
		require.True(t, ok)
		assert.Equal(t, driver.CodeConstraintValidationFailed, se.Code)
		assert.Contains(t, se.Message, "already exists with label")
		assert.True(t, se.IsClientError())

		var back *neo4j.Neo4jError
		assert.True(t, errors.As(err, &back))
		assert.NotErrorIs(t, err, driver.ErrSessionExpired)
	})

	t.Run("leader switch expires the session", func(t *testing.T) {
		for _, code := range []string{driver.CodeNotALeader, driver.CodeForbiddenOnReadOnlyDB} {
			err := translateError(&neo4j.Neo4jError{Code: code, Msg: "m"})
			assert.ErrorIs(t, err, driver.ErrSessionExpired, code)
			_, ok := driver.AsServerError(err)
			assert.True(t, ok)
		}
	})

	t.Run("database unavailable", func(t *testing.T) {
		err := translateError(&neo4j.Neo4jError{Code: driver.CodeDatabaseUnavailable, Msg: "m"})
		assert.ErrorIs(t, err, driver.ErrServiceUnavailable)
		assert.NotErrorIs(t, err, driver.ErrSessionExpired)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Same(t, plain, translateError(plain))
	})
}

func TestConvertValue(t *testing.T) {
	alice := dbtype.Node{Id: 1, ElementId: "4:x:1", Labels: []string{"Person"}, Props: map[string]any{"name": "Alice"}}
	bob := dbtype.Node{Id: 2, ElementId: "4:x:2", Labels: []string{"Person"}}
	knows := dbtype.Relationship{Id: 7, ElementId: "5:x:7", StartId: 1, StartElementId: "4:x:1", EndId: 2, EndElementId: "4:x:2", Type: "KNOWS"}

	row := convertRow([]any{
		alice,
		knows,
		dbtype.Path{Nodes: []dbtype.Node{alice, bob}, Relationships: []dbtype.Relationship{knows}},
		[]any{[]any{bob, int64(3)}, "text"},
		map[string]any{"n": alice},
		int64(42),
		nil,
	})

	require.Len(t, row, 7)
	assert.Equal(t, graph.Node{ID: 1, ElementID: "4:x:1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Alice"}}, row[0])
	assert.Equal(t, graph.Relationship{
		ID: 7, ElementID: "5:x:7",
		StartID: 1, StartElementID: "4:x:1",
		EndID: 2, EndElementID: "4:x:2",
		Type: "KNOWS",
	}, row[1])

	p, ok := row[2].(graph.Path)
	require.True(t, ok)
	assert.Equal(t, 1, p.Len())
	start, _ := p.Start()
	end, _ := p.End()
	assert.Equal(t, "4:x:1", start.ElementID)
	assert.Equal(t, "4:x:2", end.ElementID)

	nested := row[3].([]any)
	inner := nested[0].([]any)
	assert.IsType(t, graph.Node{}, inner[0])
	assert.Equal(t, int64(3), inner[1])
	assert.Equal(t, "text", nested[1])

	assert.IsType(t, graph.Node{}, row[4].(map[string]any)["n"])
	assert.Equal(t, int64(42), row[5])
	assert.Nil(t, row[6])
}
