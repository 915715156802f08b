package substrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/common"
)

// Block is a handle on one block. Metadata and body are fetched on first
// use. A Block is not safe for concurrent use.
type Block struct {
	client *Client
	header chain.Header

	md   *scale.Metadata
	body []hexutil.Bytes
}

var _ chain.Block = (*Block)(nil)

func (b *Block) Header() *chain.Header {
	return &b.header
}

func (b *Block) metadata(ctx context.Context) (*scale.Metadata, error) {
	if b.md != nil {
		return b.md, nil
	}
	md, err := b.client.Metadata(ctx, b.header.Hash)
	if err != nil {
		return nil, err
	}
	b.md = md
	return md, nil
}

// Storage implements chain.Block. Only plain storage items are supported.
func (b *Block) Storage(ctx context.Context, pallet, item string) (any, bool, error) {
	md, err := b.metadata(ctx)
	if err != nil {
		return nil, false, err
	}
	p, entry, err := md.StorageEntry(pallet, item)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", chain.ErrNoSuchItem, err)
	}
	if !entry.Plain {
		return nil, false, fmt.Errorf("substrate: %s.%s is a storage map", pallet, item)
	}

	var raw *hexutil.Bytes
	key := hexutil.Bytes(scale.StorageKey(p.StoragePrefix, entry.Name))
	if err := b.client.call(ctx, &raw, "state_getStorage", key, hexutil.Bytes(b.header.Hash)); err != nil {
		return nil, false, err
	}
	value := entry.Default
	if raw != nil {
		value = *raw
	} else if entry.Optional {
		return nil, false, nil
	}

	v, err := md.Registry.DecodeBytes(value, entry.ValueType)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s.%s: %w", pallet, item, err)
	}
	return v, true, nil
}

func (b *Block) Constant(ctx context.Context, pallet, name string) (any, error) {
	md, err := b.metadata(ctx)
	if err != nil {
		return nil, err
	}
	c, err := md.Constant(pallet, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrNoSuchItem, err)
	}
	v, err := md.Registry.DecodeBytes(c.Value, c.Type)
	if err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", pallet, name, err)
	}
	return v, nil
}

func (b *Block) Extrinsics(ctx context.Context) ([]chain.Extrinsic, error) {
	md, err := b.metadata(ctx)
	if err != nil {
		return nil, err
	}
	if b.body == nil {
		var block *rpcSignedBlock
		if err := b.client.call(ctx, &block, "chain_getBlock", hexutil.Bytes(b.header.Hash)); err != nil {
			return nil, err
		}
		if block == nil {
			return nil, fmt.Errorf("%w: hash %x", ErrBlockNotFound, b.header.Hash)
		}
		b.body = block.Block.Extrinsics
		if b.body == nil {
			b.body = []hexutil.Bytes{}
		}
	}

	out := make([]chain.Extrinsic, 0, len(b.body))
	for i, raw := range b.body {
		xt, err := decodeExtrinsic(md, raw)
		if err != nil {
			return nil, fmt.Errorf("extrinsic %d-%d: %w", b.header.Number, i, err)
		}
		xt.Index = uint32(i)
		out = append(out, xt)
	}
	return out, nil
}

// Events decodes System.Events.
func (b *Block) Events(ctx context.Context) ([]chain.EventRecord, error) {
	v, _, err := b.Storage(ctx, "System", "Events")
	if err != nil {
		return nil, err
	}
	records, ok := v.([]any)
	if !ok && v != nil {
		return nil, fmt.Errorf("substrate: System.Events decoded as %T", v)
	}

	out := make([]chain.EventRecord, 0, len(records))
	for i, r := range records {
		ev, err := eventRecord(r)
		if err != nil {
			return nil, fmt.Errorf("event %d-%d: %w", b.header.Number, i, err)
		}
		ev.Index = uint32(i)
		out = append(out, ev)
	}
	return out, nil
}

func eventRecord(v any) (chain.EventRecord, error) {
	var ev chain.EventRecord
	record, ok := v.(*scale.Composite)
	if !ok {
		return ev, fmt.Errorf("unexpected record %T", v)
	}

	phase, _ := record.Get("phase")
	pv, ok := phase.(*scale.Variant)
	if !ok {
		return ev, fmt.Errorf("unexpected phase %T", phase)
	}
	switch pv.Name {
	case "ApplyExtrinsic":
		ev.Phase = common.PhaseApplyExtrinsic
		if pv.Fields == nil || len(pv.Fields.Values) != 1 {
			return ev, fmt.Errorf("ApplyExtrinsic phase without index")
		}
		idx, ok := scale.AsUint64(pv.Fields.Values[0])
		if !ok {
			return ev, fmt.Errorf("unexpected extrinsic index %T", pv.Fields.Values[0])
		}
		ev.ExtrinsicIndex = uint32(idx)
	case "Finalization":
		ev.Phase = common.PhaseFinalization
	case "Initialization":
		ev.Phase = common.PhaseInitialization
	default:
		return ev, fmt.Errorf("unknown phase %s", pv.Name)
	}

	event, _ := record.Get("event")
	pallet, ok := event.(*scale.Variant)
	if !ok {
		return ev, fmt.Errorf("unexpected event %T", event)
	}
	inner, ok := pallet.Inner()
	if !ok {
		return ev, fmt.Errorf("event of pallet %s has no variant", pallet.Name)
	}
	values, err := json.Marshal(inner.Fields)
	if err != nil {
		return ev, err
	}
	ev.Pallet = pallet.Name
	ev.Name = inner.Name
	ev.Values = values
	return ev, nil
}
