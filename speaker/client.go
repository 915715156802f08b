// Package speaker carries extracted blocks from the streaming pipeline to
// remote storage nodes over JSON-RPC.
package speaker

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hyperdot/hyperdot-node/common"
)

const (
	// Namespace is the JSON-RPC namespace served by storage nodes.
	Namespace = "storage"
	// MethodWriteBlock persists a common.WriteBlock on a storage node.
	MethodWriteBlock = Namespace + "_writeBlock"
)

// WriteBlockResponse acknowledges a stored request.
type WriteBlockResponse struct{}

// EndpointURL turns a catalog endpoint, which may be a bare host:port, into
// a URL the rpc package can dial.
func EndpointURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "http://" + endpoint
}

// Client writes blocks to one storage node.
type Client struct {
	node string
	rpc  *rpc.Client
}

// Dial opens a client for the storage node named node at endpoint.
func Dial(ctx context.Context, node string, endpoint string) (*Client, error) {
	c, err := rpc.DialContext(ctx, EndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("dial storage node %s: %w", node, err)
	}
	return NewClient(node, c), nil
}

func NewClient(node string, c *rpc.Client) *Client {
	return &Client{node: node, rpc: c}
}

// Name is the storage node name.
func (c *Client) Name() string {
	return c.node
}

func (c *Client) WriteBlock(ctx context.Context, req *common.WriteBlock) error {
	var resp WriteBlockResponse
	if err := c.rpc.CallContext(ctx, &resp, MethodWriteBlock, req); err != nil {
		return fmt.Errorf("storage node %s: %w", c.node, err)
	}
	return nil
}

func (c *Client) Close() {
	c.rpc.Close()
}
