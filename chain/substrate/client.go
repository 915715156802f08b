// Package substrate is a JSON-RPC client for Substrate nodes. It decodes
// blocks, storage and events against the runtime metadata of each block.
package substrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/hyperdot/hyperdot-node/cache/kvstore"
	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
)

// ErrBlockNotFound is returned when the node has no block at a height.
var ErrBlockNotFound = errors.New("substrate: block not found")

type Options struct {
	// RequestsPerSecond limits calls to the node. Zero means no limit.
	RequestsPerSecond float64
	Burst             int
	// CallTimeout bounds each call. Zero means no timeout.
	CallTimeout time.Duration
	// PollInterval is the initial wait between finalized head polls; it
	// backs off up to MaxPollInterval while the head does not move.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	// Cache persists decoded runtime metadata across restarts. May be nil.
	Cache kvstore.KVStore
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxPollInterval < o.PollInterval {
		o.MaxPollInterval = 6 * o.PollInterval
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
}

// Client talks to one Substrate node.
type Client struct {
	chain   string
	rpc     *rpc.Client
	limiter *rate.Limiter
	opts    Options
	metrics metrics.RPCMetrics
	logger  *log.Logger

	mu       sync.Mutex
	runtimes map[string]*scale.Metadata
}

var _ chain.Subscriber = (*Client)(nil)

// Dial connects to the node at url (ws, wss, http or https).
func Dial(ctx context.Context, chainName string, url string, opts Options, logger *log.Logger) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(chainName, c, opts, logger), nil
}

// NewClient wraps an established RPC connection.
func NewClient(chainName string, c *rpc.Client, opts Options, logger *log.Logger) *Client {
	opts.setDefaults()
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		chain:    chainName,
		rpc:      c,
		limiter:  rate.NewLimiter(limit, opts.Burst),
		opts:     opts,
		metrics:  metrics.NewRPCMetrics(chainName),
		logger:   logger.WithModule("substrate").WithChain(chainName),
		runtimes: map[string]*scale.Metadata{},
	}
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.limiter.Limit() != rate.Inf && c.limiter.Tokens() < 1 {
		c.metrics.RateLimitWait()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}
	timer := c.metrics.Timer(method)
	err := c.rpc.CallContext(ctx, result, method, args...)
	timer.ObserveDuration()
	c.metrics.Call(method, err)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// FinalizedHead returns the number of the latest finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (uint64, error) {
	var hash hexutil.Bytes
	if err := c.call(ctx, &hash, "chain_getFinalizedHead"); err != nil {
		return 0, err
	}
	header, err := c.header(ctx, hash)
	if err != nil {
		return 0, err
	}
	return uint64(header.Number), nil
}

func (c *Client) header(ctx context.Context, hash hexutil.Bytes) (*rpcHeader, error) {
	var header *rpcHeader
	if err := c.call(ctx, &header, "chain_getHeader", hash); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: hash %s", ErrBlockNotFound, hash)
	}
	return header, nil
}

// BlockAt returns a handle on the block at number.
func (c *Client) BlockAt(ctx context.Context, number uint64) (*Block, error) {
	var hash *hexutil.Bytes
	if err := c.call(ctx, &hash, "chain_getBlockHash", number); err != nil {
		return nil, err
	}
	if hash == nil {
		return nil, fmt.Errorf("%w: number %d", ErrBlockNotFound, number)
	}
	header, err := c.header(ctx, *hash)
	if err != nil {
		return nil, err
	}
	if uint64(header.Number) != number {
		return nil, fmt.Errorf("substrate: node returned header %d for block %d", header.Number, number)
	}

	digest := make([][]byte, len(header.Digest.Logs))
	for i, l := range header.Digest.Logs {
		digest[i] = l
	}
	return &Block{
		client: c,
		header: chain.Header{
			Number:         number,
			Hash:           *hash,
			ParentHash:     header.ParentHash,
			StateRoot:      header.StateRoot,
			ExtrinsicsRoot: header.ExtrinsicsRoot,
			Digest:         digest,
		},
	}, nil
}

// Metadata returns the runtime metadata in effect at block hash. Metadata
// is cached per spec name and version.
func (c *Client) Metadata(ctx context.Context, hash hexutil.Bytes) (*scale.Metadata, error) {
	var version rpcRuntimeVersion
	if err := c.call(ctx, &version, "state_getRuntimeVersion", hash); err != nil {
		return nil, err
	}
	key := kvstore.GenerateCacheKey(version.SpecName, strconv.FormatUint(uint64(version.SpecVersion), 10))

	c.mu.Lock()
	md, ok := c.runtimes[key.String()]
	c.mu.Unlock()
	if ok {
		return md, nil
	}

	fetch := func() ([]byte, error) {
		var raw hexutil.Bytes
		if err := c.call(ctx, &raw, "state_getMetadata", hash); err != nil {
			return nil, err
		}
		return raw, nil
	}
	var raw []byte
	var err error
	if c.opts.Cache != nil {
		raw, err = kvstore.GetOrCall(c.opts.Cache, key, fetch)
		if err != nil && raw != nil {
			c.logger.Warn("failed to cache metadata", "runtime", key.String(), "err", err)
			err = nil
		}
	} else {
		raw, err = fetch()
	}
	if err != nil {
		return nil, err
	}

	md, err = scale.DecodeMetadata(raw)
	if err != nil {
		return nil, fmt.Errorf("runtime %s: %w", key, err)
	}
	c.logger.Info("loaded runtime metadata", "runtime", key.String(), "pallets", len(md.Pallets))

	c.mu.Lock()
	c.runtimes[key.String()] = md
	c.mu.Unlock()
	return md, nil
}

// SubscribeFinalized streams finalized blocks starting at the current
// finalized head.
func (c *Client) SubscribeFinalized(ctx context.Context) (chain.Subscription, error) {
	head, err := c.FinalizedHead(ctx)
	if err != nil {
		return nil, err
	}
	return newPoller(c, head, head)
}
