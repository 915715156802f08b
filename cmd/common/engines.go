package common

import (
	"context"
	"fmt"

	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
	"github.com/hyperdot/hyperdot-node/storage/postgres"
	"github.com/hyperdot/hyperdot-node/storage/redis"
)

// Engines are the data engines of one storage node.
type Engines struct {
	All      []storage.DataEngine
	Postgres []*postgres.Engine
}

func (e *Engines) Close() {
	for _, engine := range e.All {
		engine.Close()
	}
}

// StorageNode returns the catalog entry of the named storage node.
func StorageNode(catalog *config.Catalog, name string) (*config.StorageNodeConfig, error) {
	node, ok := catalog.StorageNode(name)
	if !ok {
		return nil, fmt.Errorf("storage node %s not found in catalog", name)
	}
	return node, nil
}

// NewEngines opens every data engine configured for node. An engine that
// cannot be opened is logged and left out; it is an error only when no
// engine is left.
func NewEngines(ctx context.Context, node *config.StorageNodeConfig, writeMode string, logger *log.Logger) (*Engines, error) {
	mode, err := postgres.ParseWriteMode(writeMode)
	if err != nil {
		return nil, err
	}

	engines := &Engines{}
	for i, info := range node.DataEngines {
		switch info.Kind {
		case config.EngineKindPostgres:
			e := postgres.NewEngine(ctx, info.Postgres, postgres.Options{Mode: mode}, logger)
			engines.All = append(engines.All, e)
			engines.Postgres = append(engines.Postgres, e)
		case config.EngineKindRedis:
			e, err := redis.NewEngine(ctx, info.Redis, logger)
			if err != nil {
				logger.Error("redis data engine unavailable, skipping", "storage_node", node.Name, "err", err)
				continue
			}
			engines.All = append(engines.All, e)
		default:
			logger.Warn("unknown data engine kind, skipping", "storage_node", node.Name, "index", i, "kind", info.Kind)
		}
	}
	if len(engines.All) == 0 {
		return nil, fmt.Errorf("storage node %s has no usable data engine", node.Name)
	}
	return engines, nil
}
