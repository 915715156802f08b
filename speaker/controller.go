package speaker

import (
	"context"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
)

// NodeClient is a connection to one storage node.
type NodeClient interface {
	Name() string
	WriteBlock(ctx context.Context, req *common.WriteBlock) error
	Close()
}

type dialFunc func(ctx context.Context, node *config.StorageNodeConfig) (NodeClient, error)

func dialNode(ctx context.Context, node *config.StorageNodeConfig) (NodeClient, error) {
	return Dial(ctx, node.Name, node.RPCEndpoint)
}

// Controller routes each chain's blocks to the storage nodes the catalog
// assigns to it.
type Controller struct {
	chains *storage.Registry[[]NodeClient]
	nodes  []NodeClient
	logger *log.Logger
}

// NewController dials the storage nodes of every enabled chain. Unknown
// nodes and failed dials are logged and skipped; a chain without any
// reachable node is not registered.
func NewController(ctx context.Context, catalog *config.Catalog, logger *log.Logger) *Controller {
	return newController(ctx, catalog, logger, dialNode)
}

func newController(ctx context.Context, catalog *config.Catalog, logger *log.Logger, dial dialFunc) *Controller {
	c := &Controller{
		chains: storage.NewRegistry[[]NodeClient](),
		logger: logger.WithModule("speaker"),
	}
	dialed := map[string]NodeClient{}

	for _, chain := range catalog.Chains {
		chainLogger := c.logger.WithChain(chain.Name)
		if !chain.Enabled {
			chainLogger.Info("chain not enabled, skipping")
			continue
		}
		if len(chain.StorageNodes) == 0 {
			chainLogger.Info("chain defines no storage nodes, skipping")
			continue
		}

		var clients []NodeClient
		for _, name := range chain.StorageNodes {
			if client, ok := dialed[name]; ok {
				clients = append(clients, client)
				continue
			}
			node, ok := catalog.StorageNode(name)
			if !ok {
				chainLogger.Warn("storage node not found in catalog, skipping", "storage_node", name)
				continue
			}
			client, err := dial(ctx, node)
			if err != nil {
				chainLogger.Warn("storage node unreachable, skipping",
					"storage_node", name,
					"rpc_endpoint", node.RPCEndpoint,
					"err", err,
				)
				continue
			}
			dialed[name] = client
			c.nodes = append(c.nodes, client)
			clients = append(clients, client)
		}

		if len(clients) == 0 {
			chainLogger.Error("no available storage node", "storage_nodes", chain.StorageNodes)
			continue
		}
		c.chains.Register(chain.Name, clients)
		chainLogger.Info("speaker ready", "storage_nodes", len(clients))
	}
	return c
}

// Chains returns the chains that have at least one storage node.
func (c *Controller) Chains() []string {
	return c.chains.Chains()
}

// Clients exposes the chain registry.
func (c *Controller) Clients() storage.ConnectionRegistry[[]NodeClient] {
	return c.chains
}

// WriteBlock sends req to every storage node of its chain in catalog order
// and stops at the first node that fails.
func (c *Controller) WriteBlock(ctx context.Context, req *common.WriteBlock) error {
	clients, ok := c.chains.Get(req.Chain)
	if !ok {
		return common.ChainNotRegistered(req.Chain)
	}
	for _, client := range clients {
		if err := client.WriteBlock(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) Close() {
	for _, client := range c.nodes {
		client.Close()
	}
}
