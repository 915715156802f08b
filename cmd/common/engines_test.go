package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/storage/postgres"
)

// Nothing listens on port 1 of the loopback interface.
const unreachable = "127.0.0.1"

func TestNewEngines(t *testing.T) {
	node := &config.StorageNodeConfig{
		Name: "hyperdot-node",
		DataEngines: []config.DataEngineInfo{
			{
				Kind: config.EngineKindPostgres,
				Postgres: &config.PostgresEngineConfig{
					Connections: []config.PostgresConnectionConfig{
						{Name: "pg1", Username: "postgres", Host: unreachable, Port: 1},
					},
					SupportChains: []config.PostgresChainConfig{
						{Name: "polkadot", UseConnection: "pg1", DBName: "polkadot", Enabled: true},
					},
				},
			},
			{
				Kind:  config.EngineKindRedis,
				Redis: &config.RedisEngineConfig{Addr: unreachable + ":1"},
			},
			{Kind: "clickhouse"},
		},
	}

	engines, err := NewEngines(context.Background(), node, "", RootLogger())
	require.NoError(t, err)
	defer engines.Close()

	// The postgres engine is kept without chains; redis is left out.
	require.Len(t, engines.All, 1)
	require.Len(t, engines.Postgres, 1)
	require.Equal(t, postgres.EngineName, engines.All[0].Name())
	require.Empty(t, engines.Postgres[0].Chains())
}

func TestNewEnginesErrors(t *testing.T) {
	_, err := NewEngines(context.Background(), &config.StorageNodeConfig{Name: "empty"}, "", RootLogger())
	require.ErrorContains(t, err, "no usable data engine")

	_, err = NewEngines(context.Background(), &config.StorageNodeConfig{Name: "empty"}, "eventual", RootLogger())
	require.ErrorContains(t, err, "write_mode")
}

func TestStorageNode(t *testing.T) {
	catalog := &config.Catalog{Storage: config.StorageCatalog{Nodes: []config.StorageNodeConfig{{Name: "a"}}}}
	node, err := StorageNode(catalog, "a")
	require.NoError(t, err)
	require.Equal(t, "a", node.Name)

	_, err = StorageNode(catalog, "b")
	require.ErrorContains(t, err, "not found")
}

func TestLoadCatalog(t *testing.T) {
	_, err := LoadCatalog(&config.Config{})
	require.ErrorContains(t, err, "catalog config not provided")

	_, err = LoadCatalog(&config.Config{Catalog: &config.CatalogConfig{Path: "catalog.toml"}})
	require.ErrorContains(t, err, "catalog.toml")
}
