package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/chain"
	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/chain/scale/scaletest"
	"github.com/hyperdot/hyperdot-node/chain/substrate"
	"github.com/hyperdot/hyperdot-node/chain/substrate/substratetest"
	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
)

type fakeBlock struct {
	header     chain.Header
	storage    map[string]any
	storageErr error
	extrinsics []chain.Extrinsic
	events     []chain.EventRecord
}

func (b *fakeBlock) Header() *chain.Header {
	return &b.header
}

func (b *fakeBlock) Storage(_ context.Context, pallet, item string) (any, bool, error) {
	if b.storageErr != nil {
		return nil, false, b.storageErr
	}
	if pallet == "Authorship" {
		v, ok := b.storage[pallet+"."+item]
		if !ok {
			return nil, false, chain.ErrNoSuchItem
		}
		return v, v != nil, nil
	}
	v, ok := b.storage[pallet+"."+item]
	return v, ok, nil
}

func (b *fakeBlock) Constant(context.Context, string, string) (any, error) {
	return &scale.Composite{
		Names:  []string{"spec_name", "spec_version"},
		Values: []any{"polkadot", uint64(9430)},
	}, nil
}

func (b *fakeBlock) Extrinsics(context.Context) ([]chain.Extrinsic, error) {
	return b.extrinsics, nil
}

func (b *fakeBlock) Events(context.Context) ([]chain.EventRecord, error) {
	return b.events, nil
}

func TestExtract(t *testing.T) {
	b := &fakeBlock{
		header: chain.Header{
			Number: 7,
			Hash:   []byte{0x07},
			Digest: [][]byte{
				append([]byte{digestPreRuntime}, append([]byte("BABE"), 0x04, 0xab)...),
			},
		},
		storage: map[string]any{
			"Timestamp.Now": uint64(1000),
		},
		extrinsics: []chain.Extrinsic{
			{Index: 0, Hash: []byte{0xa0}, Pallet: "Timestamp", Call: "set"},
			{Index: 1, Hash: []byte{0xa1}, Signed: true, Signer: []byte{0x01}, Pallet: "Balances", Call: "transfer_keep_alive"},
		},
		events: []chain.EventRecord{
			{Index: 0, Phase: common.PhaseApplyExtrinsic, ExtrinsicIndex: 0, Pallet: "System", Name: "ExtrinsicSuccess"},
			{Index: 1, Phase: common.PhaseApplyExtrinsic, ExtrinsicIndex: 1, Pallet: "Balances", Name: "Withdraw"},
			{Index: 2, Phase: common.PhaseApplyExtrinsic, ExtrinsicIndex: 1, Pallet: "System", Name: "ExtrinsicFailed"},
		},
	}

	out, err := Extract(context.Background(), b)
	require.NoError(t, err)
	require.EqualValues(t, 7, out.Header.BlockNumber)
	require.EqualValues(t, 1000, out.Header.BlockTimestamp)
	require.EqualValues(t, 9430, out.Header.SpecVersion)
	require.False(t, out.Header.IsFinished)
	require.Nil(t, out.Header.Validator)

	require.Len(t, out.Body.Extrinsics, 2)
	require.True(t, out.Body.Extrinsics[0].Result)
	require.False(t, out.Body.Extrinsics[1].Result)
	require.Equal(t, "7-1", out.Body.Extrinsics[1].ID)
	require.Equal(t, hexutil.Bytes{0x01}, out.Body.Extrinsics[1].Signer)

	require.Len(t, out.Body.Events, 3)
	for _, ev := range out.Body.Events {
		xt := out.Body.Extrinsics[ev.ExtrinsicIndex]
		require.Equal(t, xt.ID, ev.ExtrinsicID)
		require.Equal(t, xt.ExtrinsicHash, ev.ExtrinsicHash)
	}
	require.Equal(t, "7-2", out.Body.Events[2].ID)

	require.Equal(t, []common.Log{{
		ID:          "7-0",
		BlockNumber: 7,
		Type:        common.LogPreRuntime,
		Engine:      "Babe",
		Data:        hexutil.Bytes{0xab},
	}}, out.Logs)
}

func TestExtractFinalization(t *testing.T) {
	b := &fakeBlock{
		header:  chain.Header{Number: 8},
		storage: map[string]any{"Timestamp.Now": uint64(1), "Authorship.Author": hexutil.Bytes{0xcc}},
		events: []chain.EventRecord{
			{Index: 0, Phase: common.PhaseInitialization, Pallet: "System", Name: "Remarked"},
			{Index: 1, Phase: common.PhaseFinalization, Pallet: "System", Name: "NewAccount"},
		},
	}
	out, err := Extract(context.Background(), b)
	require.NoError(t, err)
	require.True(t, out.Header.IsFinished)
	require.Equal(t, hexutil.Bytes{0xcc}, out.Header.Validator)
	// Events outside an extrinsic have no row of their own.
	require.Empty(t, out.Body.Events)
}

func TestExtractError(t *testing.T) {
	b := &fakeBlock{
		header:     chain.Header{Number: 9},
		storageErr: errors.New("connection reset"),
	}
	_, err := Extract(context.Background(), b)
	require.ErrorContains(t, err, "extract block 9")
	require.ErrorContains(t, err, "connection reset")
}

func TestEngineName(t *testing.T) {
	for id, want := range map[string]string{
		"BABE": "Babe",
		"babe": "Babe",
		"FRNK": "Grandpa",
		"gran": "Grandpa",
		"aura": "Aura",
		"AURA": "Aura",
		"pow_": "",
		"xxxx": "",
	} {
		require.Equal(t, want, EngineName([]byte(id)), id)
	}
}

func TestDecodeLog(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
		want common.Log
	}{
		{
			name: "seal unknown engine",
			raw:  append([]byte{digestSeal}, append([]byte("nmbs"), 0x08, 1, 2)...),
			want: common.Log{Type: common.LogSeal, Data: hexutil.Bytes{1, 2}},
		},
		{
			name: "consensus grandpa",
			raw:  append([]byte{digestConsensus}, append([]byte("FRNK"), 0x00)...),
			want: common.Log{Type: common.LogConsensus, Engine: "Grandpa", Data: hexutil.Bytes{}},
		},
		{
			name: "other",
			raw:  []byte{digestOther, 0x04, 0xff},
			want: common.Log{Type: common.LogOther, Data: hexutil.Bytes{0xff}},
		},
		{
			name: "runtime environment updated",
			raw:  []byte{digestRuntimeEnvironmentUpdated},
			want: common.Log{Type: common.LogRuntimeEnvironmentUpdated},
		},
	} {
		got, err := decodeLog(tc.raw)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}

	_, err := decodeLog([]byte{9})
	require.ErrorContains(t, err, "unknown digest item type 9")
	_, err = decodeLog([]byte{digestOther, 0x00, 0x01})
	require.ErrorContains(t, err, "trailing")
	_, err = decodeLog([]byte{digestSeal, 'B', 'A'})
	require.Error(t, err)
}

// A finalized block 100 with one signed Balances.transfer_keep_alive,
// decoded through the JSON-RPC client.
func TestExtractTransferBlock(t *testing.T) {
	rt := scaletest.NewRuntime("polkadot", 9430)
	node := substratetest.NewNode(rt)
	for i := 1; i < 100; i++ {
		node.AddBlock(substratetest.BlockSpec{})
	}
	alice, bob := scaletest.Account(1), scaletest.Account(2)
	transfer := scaletest.TransferKeepAlive(alice, bob, 5_000_000_000, 0)
	number := node.AddBlock(substratetest.BlockSpec{
		Timestamp:  1_690_000_000_000,
		Extrinsics: [][]byte{transfer},
		Events: scaletest.Events(
			scaletest.Event{Phase: 0, Extrinsic: 0, Body: scaletest.Transfer(alice, bob, 5_000_000_000)},
			scaletest.Event{Phase: 0, Extrinsic: 0, Body: scaletest.ExtrinsicSuccess()},
		),
		Digest: [][]byte{append([]byte{digestPreRuntime}, append([]byte("BABE"), 0x00)...)},
	})
	require.EqualValues(t, 100, number)
	node.Finalize(number)

	c := substrate.NewClient("polkadot", node.Client(), substrate.Options{}, log.NewDefaultLogger("extract-test"))
	defer c.Close()
	ctx := context.Background()
	b, err := c.BlockAt(ctx, number)
	require.NoError(t, err)

	out, err := Extract(ctx, b)
	require.NoError(t, err)
	require.EqualValues(t, 100, out.Header.BlockNumber)
	require.EqualValues(t, 1_690_000_000_000, out.Header.BlockTimestamp)
	require.EqualValues(t, 9430, out.Header.SpecVersion)
	require.Equal(t, hexutil.Bytes(substratetest.Hash(100)), out.Header.BlockHash)

	require.Len(t, out.Body.Extrinsics, 1)
	xt := out.Body.Extrinsics[0]
	require.Equal(t, "100-0", xt.ID)
	require.True(t, xt.Result)
	require.True(t, xt.IsSigned)
	require.Equal(t, "Balances", xt.ModName)
	require.Equal(t, "transfer_keep_alive", xt.CallName)
	require.Equal(t, hexutil.Bytes(alice[:]), xt.Signer)
	require.Equal(t, hexutil.Bytes(scale.Blake2b256(transfer)), xt.ExtrinsicHash)

	var params map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(xt.CallParams, &params))
	require.JSONEq(t, `5000000000`, string(params["value"]))

	require.Len(t, out.Body.Events, 2)
	ev := out.Body.Events[0]
	require.Equal(t, "100-0", ev.ID)
	require.Equal(t, "100-0", ev.ExtrinsicID)
	require.Equal(t, "Transfer", ev.EventName)
	require.Equal(t, xt.ExtrinsicHash, ev.ExtrinsicHash)
	require.Equal(t, "100-1", out.Body.Events[1].ID)

	require.Len(t, out.Logs, 1)
	require.Equal(t, "Babe", out.Logs[0].Engine)
}
