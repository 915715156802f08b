// Package testutil connects tests to the postgres instance named by
// CI_TEST_CONN_STRING.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage/migrate"
	"github.com/hyperdot/hyperdot-node/storage/postgres"
)

const connStringEnv = "CI_TEST_CONN_STRING"

// SkipIfShort skips tests that need a database in short mode or when no
// database is configured.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}
	if os.Getenv(connStringEnv) == "" {
		t.Skipf("%s not set", connStringEnv)
	}
}

func Logger(t *testing.T) *log.Logger {
	logger, err := log.NewLogger("postgres-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.Nil(t, err, "log.NewLogger")
	return logger
}

// NewTestClient returns a postgres client used in CI tests.
func NewTestClient(t *testing.T) *postgres.Client {
	client, err := postgres.NewClient(context.Background(), os.Getenv(connStringEnv), Logger(t))
	require.Nil(t, err, "postgres.NewClient")
	return client
}

// ResetSchema wipes the test database and applies the embedded migrations.
func ResetSchema(t *testing.T) {
	client := NewTestClient(t)
	defer client.Close()
	require.NoError(t, client.Wipe(context.Background()), "wipe")
	require.NoError(t, migrate.Up("", os.Getenv(connStringEnv), Logger(t)), "migrate")
}

// EngineConfig binds chain to the test database.
func EngineConfig(t *testing.T, chain string) *config.PostgresEngineConfig {
	pgCfg, err := pgconn.ParseConfig(os.Getenv(connStringEnv))
	require.NoError(t, err, "pgconn.ParseConfig")

	sslmode := "disable"
	if pgCfg.TLSConfig != nil {
		sslmode = "require"
	}
	return &config.PostgresEngineConfig{
		Connections: []config.PostgresConnectionConfig{{
			Name:     "ci",
			Username: pgCfg.User,
			Password: pgCfg.Password,
			Host:     pgCfg.Host,
			Port:     pgCfg.Port,
			SSLMode:  sslmode,
		}},
		SupportChains: []config.PostgresChainConfig{{
			Name:          chain,
			UseConnection: "ci",
			DBName:        pgCfg.Database,
			Enabled:       true,
		}},
	}
}
