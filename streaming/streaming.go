// Package streaming runs the finalized block pipeline: one syncer and one
// consumer per chain, handing every extracted block to a write target.
package streaming

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/chain/substrate"
	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/config"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
	"github.com/hyperdot/hyperdot-node/streaming/syncer"
)

const moduleName = "streaming"

// ErrSyncerClosed is returned when a chain's syncer stops delivering blocks
// while the pipeline is still running.
var ErrSyncerClosed = errors.New("streaming: syncer closed")

// BlockWriter receives every extracted block. It is either the local
// storage controller or the remote speaker.
type BlockWriter interface {
	WriteBlock(ctx context.Context, req *common.WriteBlock) error
}

// Chain is one chain followed by the pipeline.
type Chain struct {
	Name   string
	Kind   common.ChainKind
	Source chain.Subscriber
}

type Config struct {
	Syncer syncer.Config
	// Target labels write metrics, e.g. "local" or "remote".
	Target string
}

type Controller struct {
	chains []Chain
	writer BlockWriter
	cfg    Config
	logger *log.Logger
}

func NewController(chains []Chain, writer BlockWriter, cfg Config, logger *log.Logger) *Controller {
	if cfg.Target == "" {
		cfg.Target = config.TargetRemote
	}
	return &Controller{
		chains: chains,
		writer: writer,
		cfg:    cfg,
		logger: logger.WithModule(moduleName),
	}
}

// Run streams every chain until ctx is cancelled. A chain whose syncer
// stops on its own ends the whole pipeline with ErrSyncerClosed.
func (c *Controller) Run(ctx context.Context) error {
	if len(c.chains) == 0 {
		return fmt.Errorf("streaming: no chain to follow")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range c.chains {
		s, err := syncer.New(ch.Name, ch.Source, c.cfg.Syncer, c.logger)
		if err != nil {
			return fmt.Errorf("chain %s: %w", ch.Name, err)
		}
		g.Go(func() error {
			return s.Run(gctx)
		})
		consumer := &consumer{
			chain:   ch,
			blocks:  s.Blocks(),
			writer:  c.writer,
			target:  c.cfg.Target,
			metrics: metrics.NewStreamingMetrics(ch.Name),
			logger:  c.logger.WithChain(ch.Name),
		}
		g.Go(func() error {
			err := consumer.run(gctx)
			if errors.Is(err, ErrSyncerClosed) && ctx.Err() != nil {
				return nil
			}
			return err
		})
		c.logger.Info("streaming chain", "chain", ch.Name, "kind", ch.Kind, "target", c.cfg.Target)
	}
	return g.Wait()
}

type consumer struct {
	chain   Chain
	blocks  <-chan *common.Block
	writer  BlockWriter
	target  string
	metrics metrics.StreamingMetrics
	logger  *log.Logger
}

// run writes blocks one at a time. A failed write is logged and the block
// is not retried.
func (c *consumer) run(ctx context.Context) error {
	for {
		var b *common.Block
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case b, ok = <-c.blocks:
		}
		if !ok {
			return fmt.Errorf("chain %s: %w", c.chain.Name, ErrSyncerClosed)
		}
		c.metrics.QueueDepth().Set(float64(len(c.blocks)))

		req := &common.WriteBlock{
			Chain:  c.chain.Name,
			Kind:   c.chain.Kind,
			Blocks: []*common.Block{b},
		}
		err := c.writer.WriteBlock(ctx, req)
		c.metrics.Writes(c.target, metrics.StatusOf(err)).Inc()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("write block failed", "block", b.Header.BlockNumber, "target", c.target, "err", err)
			continue
		}
		c.metrics.LastBlock().Set(float64(b.Header.BlockNumber))
		c.logger.Debug("block written", "block", b.Header.BlockNumber, "target", c.target)
	}
}

// ClientOptions converts the chain rpc configuration. cfg may be nil.
func ClientOptions(cfg *config.ChainRPCConfig) substrate.Options {
	if cfg == nil {
		return substrate.Options{}
	}
	return substrate.Options{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		CallTimeout:       cfg.CallTimeout,
		PollInterval:      cfg.PollInterval,
		MaxPollInterval:   cfg.MaxPollInterval,
	}
}

type dialFunc func(ctx context.Context, cfg config.ChainConfig) (*substrate.Client, error)

// DialChains connects to the node of every enabled chain of the catalog.
// Chains of a kind the pipeline cannot extract and unreachable nodes are
// logged and skipped. The returned close function releases the clients.
func DialChains(ctx context.Context, catalog *config.Catalog, opts substrate.Options, logger *log.Logger) ([]Chain, func(), error) {
	return dialChains(ctx, catalog, logger, func(ctx context.Context, cfg config.ChainConfig) (*substrate.Client, error) {
		return substrate.Dial(ctx, cfg.Name, cfg.URL, opts, logger)
	})
}

func dialChains(ctx context.Context, catalog *config.Catalog, logger *log.Logger, dial dialFunc) ([]Chain, func(), error) {
	logger = logger.WithModule(moduleName)
	var chains []Chain
	var clients []*substrate.Client
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}

	for _, cfg := range catalog.EnabledChains() {
		if cfg.Kind != common.ChainKindPolkadot {
			logger.Warn("chain kind not supported by the pipeline, skipping", "chain", cfg.Name, "kind", cfg.Kind)
			continue
		}
		client, err := dial(ctx, cfg)
		if err != nil {
			logger.Error("chain node unreachable, skipping", "chain", cfg.Name, "url", cfg.URL, "err", err)
			continue
		}
		clients = append(clients, client)
		chains = append(chains, Chain{Name: cfg.Name, Kind: cfg.Kind, Source: client})
	}
	if len(chains) == 0 {
		closeAll()
		return nil, func() {}, fmt.Errorf("streaming: no enabled chain is reachable")
	}
	return chains, closeAll, nil
}
