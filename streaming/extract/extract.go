// Package extract turns a finalized chain block into the storage-ready
// common.Block record set.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/common"
)

// Extract reads the header, state, extrinsics and events of b. Any
// failure is returned as a single error for the block.
func Extract(ctx context.Context, b chain.Block) (*common.Block, error) {
	h := b.Header()
	block, err := extract(ctx, h, b)
	if err != nil {
		return nil, fmt.Errorf("extract block %d: %w", h.Number, err)
	}
	return block, nil
}

func extract(ctx context.Context, h *chain.Header, b chain.Block) (*common.Block, error) {
	timestamp, err := blockTimestamp(ctx, b)
	if err != nil {
		return nil, err
	}
	specVersion, err := specVersion(ctx, b)
	if err != nil {
		return nil, err
	}
	validator, err := author(ctx, b)
	if err != nil {
		return nil, err
	}
	logs, err := decodeLogs(h.Number, h.Digest)
	if err != nil {
		return nil, err
	}

	extrinsics, err := b.Extrinsics(ctx)
	if err != nil {
		return nil, fmt.Errorf("extrinsics: %w", err)
	}
	events, err := b.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	out := &common.Block{
		Header: common.Header{
			BlockNumber:    h.Number,
			BlockTimestamp: timestamp,
			BlockHash:      h.Hash,
			ParentHash:     h.ParentHash,
			ExtrinsicsRoot: h.ExtrinsicsRoot,
			StateRoot:      h.StateRoot,
			Validator:      validator,
			SpecVersion:    specVersion,
		},
		Logs: logs,
	}
	for _, ev := range events {
		if ev.Phase == common.PhaseFinalization {
			out.Header.IsFinished = true
			break
		}
	}

	for _, xt := range extrinsics {
		xtID := common.ExtrinsicID(h.Number, xt.Index)
		xtEvents := chain.EventsOf(events, xt.Index)
		out.Body.Extrinsics = append(out.Body.Extrinsics, common.Extrinsic{
			ID:             xtID,
			BlockNumber:    h.Number,
			BlockTimestamp: timestamp,
			ExtrinsicHash:  xt.Hash,
			IsSigned:       xt.Signed,
			ModName:        xt.Pallet,
			CallName:       xt.Call,
			CallParams:     xt.Params,
			Signer:         xt.Signer,
			Result:         succeeded(xtEvents),
		})
		for _, ev := range xtEvents {
			out.Body.Events = append(out.Body.Events, common.Event{
				ID:             common.EventID(h.Number, ev.Index),
				BlockNumber:    h.Number,
				BlockTimestamp: timestamp,
				ExtrinsicID:    xtID,
				ExtrinsicIndex: xt.Index,
				ExtrinsicHash:  xt.Hash,
				ModName:        ev.Pallet,
				EventName:      ev.Name,
				EventIndex:     ev.Index,
				Phase:          ev.Phase,
				Values:         ev.Values,
			})
		}
	}
	return out, nil
}

// succeeded reports whether System.ExtrinsicSuccess is among the events.
func succeeded(events []chain.EventRecord) bool {
	for _, ev := range events {
		if ev.Pallet == "System" && ev.Name == "ExtrinsicSuccess" {
			return true
		}
	}
	return false
}

func blockTimestamp(ctx context.Context, b chain.Block) (uint64, error) {
	v, ok, err := b.Storage(ctx, "Timestamp", "Now")
	if err != nil {
		return 0, fmt.Errorf("timestamp: %w", err)
	}
	if !ok {
		return 0, nil
	}
	ts, ok := scale.AsUint64(v)
	if !ok {
		return 0, fmt.Errorf("timestamp: unexpected value %T", v)
	}
	return ts, nil
}

func specVersion(ctx context.Context, b chain.Block) (uint32, error) {
	v, err := b.Constant(ctx, "System", "Version")
	if err != nil {
		return 0, fmt.Errorf("runtime version: %w", err)
	}
	version, ok := v.(*scale.Composite)
	if !ok {
		return 0, fmt.Errorf("runtime version: unexpected value %T", v)
	}
	sv, _ := version.Get("spec_version")
	n, ok := scale.AsUint64(sv)
	if !ok || n > 1<<32-1 {
		return 0, fmt.Errorf("runtime version: bad spec_version %v", sv)
	}
	return uint32(n), nil
}

// author returns nil when the chain has no Authorship pallet or the item
// is unset.
func author(ctx context.Context, b chain.Block) ([]byte, error) {
	v, ok, err := b.Storage(ctx, "Authorship", "Author")
	switch {
	case errors.Is(err, chain.ErrNoSuchItem):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("author: %w", err)
	case !ok:
		return nil, nil
	}
	id, ok := scale.AsBytes(v)
	if !ok {
		return nil, fmt.Errorf("author: unexpected value %T", v)
	}
	return id, nil
}
