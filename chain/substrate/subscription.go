package substrate

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/util"
)

// poller implements chain.Subscription by polling chain_getFinalizedHead
// and walking forward one block number at a time. Substrate's
// chain_subscribeFinalizedHeads can skip heights when several blocks are
// finalized together; walking by number does not.
type poller struct {
	client  *Client
	next    uint64
	head    uint64
	backoff *util.Backoff
	wait    bool
	closed  atomic.Bool
}

var _ chain.Subscription = (*poller)(nil)

func newPoller(c *Client, from uint64, head uint64) (*poller, error) {
	backoff, err := util.NewBackoff(c.opts.PollInterval, c.opts.MaxPollInterval)
	if err != nil {
		return nil, err
	}
	return &poller{client: c, next: from, head: head, backoff: backoff}, nil
}

// Next blocks until the next finalized block is available. A failed call
// is returned to the caller; the following Next backs off and retries the
// same height.
func (p *poller) Next(ctx context.Context) (chain.Block, error) {
	for {
		if p.closed.Load() {
			return nil, chain.ErrStreamClosed
		}
		if p.wait {
			if err := p.backoff.Wait(ctx); err != nil {
				return nil, err
			}
		}
		p.wait = true

		if p.next > p.head {
			head, err := p.client.FinalizedHead(ctx)
			if err != nil {
				return nil, fmt.Errorf("finalized head: %w", err)
			}
			p.head = head
			if p.next > p.head {
				continue
			}
		}

		b, err := p.client.BlockAt(ctx, p.next)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", p.next, err)
		}
		p.next++
		p.wait = false
		p.backoff.Reset()
		return b, nil
	}
}

func (p *poller) Close() {
	p.closed.Store(true)
}
