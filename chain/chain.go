// Package chain defines what the ingestion pipeline needs from a chain
// client: a stream of finalized blocks and typed access to each block's
// state, extrinsics and events.
package chain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hyperdot/hyperdot-node/common"
)

// ErrStreamClosed is returned by Subscription.Next once the stream has
// ended. No further blocks will be delivered.
var ErrStreamClosed = errors.New("chain: finalized block stream closed")

// ErrNoSuchItem is returned when the runtime of a block does not define a
// requested pallet, storage item or constant.
var ErrNoSuchItem = errors.New("chain: no such item in runtime")

// Header is the raw header of a block. Digest holds the SCALE encoding
// of each digest item.
type Header struct {
	Number         uint64
	Hash           []byte
	ParentHash     []byte
	StateRoot      []byte
	ExtrinsicsRoot []byte
	Digest         [][]byte
}

// Extrinsic is a decoded extrinsic.
type Extrinsic struct {
	Index uint32
	// Hash is the blake2b-256 hash of the length-prefixed encoding.
	Hash   []byte
	Signed bool
	Signer []byte
	Pallet string
	Call   string
	Params json.RawMessage
}

// EventRecord is one entry of System.Events. ExtrinsicIndex is only
// meaningful in the ApplyExtrinsic phase.
type EventRecord struct {
	Index          uint32
	Phase          common.Phase
	ExtrinsicIndex uint32
	Pallet         string
	Name           string
	Values         json.RawMessage
}

// Block is a handle on one block of a chain. Reads are made against the
// block's own state.
type Block interface {
	Header() *Header
	// Storage reads a plain storage item. ok is false when the item is
	// optional and absent.
	Storage(ctx context.Context, pallet, item string) (value any, ok bool, err error)
	Constant(ctx context.Context, pallet, name string) (any, error)
	Extrinsics(ctx context.Context) ([]Extrinsic, error)
	Events(ctx context.Context) ([]EventRecord, error)
}

// Subscription delivers finalized blocks in increasing block number order.
type Subscription interface {
	Next(ctx context.Context) (Block, error)
	Close()
}

// Subscriber opens finalized block subscriptions.
type Subscriber interface {
	SubscribeFinalized(ctx context.Context) (Subscription, error)
}

// EventsOf returns the events emitted while applying extrinsic index.
func EventsOf(events []EventRecord, index uint32) []EventRecord {
	var out []EventRecord
	for _, e := range events {
		if e.Phase == common.PhaseApplyExtrinsic && e.ExtrinsicIndex == index {
			out = append(out, e)
		}
	}
	return out
}
