// Package syncer follows the finalized blocks of one chain and delivers
// their extracted record sets on a bounded channel.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/metrics"
	"github.com/hyperdot/hyperdot-node/streaming/extract"
)

// OverflowPolicy decides what happens when the output channel is full.
type OverflowPolicy string

const (
	// OverflowBlock makes the syncer wait for the consumer.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest discards the oldest queued block.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
)

func (p OverflowPolicy) Validate() error {
	switch p {
	case OverflowBlock, OverflowDropOldest:
		return nil
	default:
		return fmt.Errorf("unknown overflow policy '%s'", p)
	}
}

const DefaultChannelCapacity = 64

type Config struct {
	ChannelCapacity int
	Overflow        OverflowPolicy
}

// ExtractFunc converts a chain block into its record set.
type ExtractFunc func(ctx context.Context, b chain.Block) (*common.Block, error)

type Syncer struct {
	chain   string
	source  chain.Subscriber
	extract ExtractFunc
	policy  OverflowPolicy
	out     chan *common.Block

	logger  *log.Logger
	metrics metrics.StreamingMetrics
}

// New returns a syncer for chainName that reads from source. A zero
// Config means DefaultChannelCapacity and OverflowBlock.
func New(chainName string, source chain.Subscriber, cfg Config, logger *log.Logger) (*Syncer, error) {
	if cfg.ChannelCapacity == 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}
	if cfg.ChannelCapacity < 0 {
		return nil, fmt.Errorf("channel capacity %d must be positive", cfg.ChannelCapacity)
	}
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowBlock
	}
	if err := cfg.Overflow.Validate(); err != nil {
		return nil, err
	}
	return &Syncer{
		chain:   chainName,
		source:  source,
		extract: extract.Extract,
		policy:  cfg.Overflow,
		out:     make(chan *common.Block, cfg.ChannelCapacity),
		logger:  logger.WithModule("syncer").WithChain(chainName),
		metrics: metrics.NewStreamingMetrics(chainName),
	}, nil
}

// Blocks is closed when Run returns.
func (s *Syncer) Blocks() <-chan *common.Block {
	return s.out
}

// Run follows the chain until the subscription ends or ctx is done. Errors
// fetching or extracting a single block are logged and the block is
// skipped. It returns an error only if the subscription cannot be opened.
func (s *Syncer) Run(ctx context.Context) error {
	defer close(s.out)

	sub, err := s.source.SubscribeFinalized(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to finalized blocks: %w", err)
	}
	defer sub.Close()
	s.logger.Info("subscribed to finalized blocks")

	for {
		raw, err := sub.Next(ctx)
		switch {
		case ctx.Err() != nil:
			s.logger.Info("syncer stopped")
			return nil
		case errors.Is(err, chain.ErrStreamClosed):
			s.logger.Warn("finalized block stream closed")
			return nil
		case err != nil:
			s.logger.Warn("failed to receive finalized block", "err", err)
			continue
		}

		block, err := s.extract(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.Extracted(metrics.StatusFailure).Inc()
			s.logger.Error("failed to extract block", "block", raw.Header().Number, "err", err)
			continue
		}
		s.metrics.Extracted(metrics.StatusSuccess).Inc()

		if err := s.deliver(ctx, block); err != nil {
			s.logger.Info("syncer stopped")
			return nil
		}
		s.metrics.QueueDepth().Set(float64(len(s.out)))
	}
}

func (s *Syncer) deliver(ctx context.Context, b *common.Block) error {
	if s.policy == OverflowBlock {
		select {
		case s.out <- b:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case s.out <- b:
			return nil
		default:
		}
		select {
		case dropped := <-s.out:
			s.metrics.Dropped().Inc()
			s.logger.Warn("output channel full, dropped oldest block", "dropped", dropped.Header.BlockNumber, "block", b.Header.BlockNumber)
		default:
		}
	}
}
