package scale_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/chain/scale/scaletest"
)

func fixtureMetadata(t *testing.T) (*scaletest.Runtime, *scale.Metadata) {
	rt := scaletest.NewRuntime("polkadot", 9430)
	md, err := scale.DecodeMetadata(rt.Metadata())
	require.NoError(t, err)
	return rt, md
}

func TestDecodeCall(t *testing.T) {
	rt, md := fixtureMetadata(t)
	dest := scaletest.Account(0x02)
	raw := (&scaletest.Encoder{}).
		U8(scaletest.BalancesIndex).U8(3).
		U8(0).Raw(dest[:]).
		Compact(1_000_000_000_000).
		Bytes()

	v, err := md.Registry.DecodeBytes(raw, rt.RuntimeCall)
	require.NoError(t, err)
	pallet, ok := v.(*scale.Variant)
	require.True(t, ok)
	require.Equal(t, "Balances", pallet.Name)

	call, ok := pallet.Inner()
	require.True(t, ok)
	require.Equal(t, "transfer_keep_alive", call.Name)

	value, ok := call.Fields.Get("value")
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000_000_000), value)

	params, err := json.Marshal(call.Fields)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"dest": {"name": "Id", "values": ["`+hexutil.Encode(dest[:])+`"]},
		"value": 1000000000000
	}`, string(params))
}

func TestDecodeEvents(t *testing.T) {
	rt, md := fixtureMetadata(t)
	from, to := scaletest.Account(1), scaletest.Account(2)
	raw := scaletest.Events(
		scaletest.Event{Phase: 0, Extrinsic: 0, Body: scaletest.ExtrinsicSuccess()},
		scaletest.Event{Phase: 0, Extrinsic: 1, Body: scaletest.Transfer(from, to, 42)},
		scaletest.Event{Phase: 1, Body: scaletest.NewAccount(to)},
	)

	v, err := md.Registry.DecodeBytes(raw, rt.EventRecords)
	require.NoError(t, err)
	records, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, records, 3)

	second := records[1].(*scale.Composite)
	phase, _ := second.Get("phase")
	require.Equal(t, "ApplyExtrinsic", phase.(*scale.Variant).Name)
	require.Equal(t, uint64(1), phase.(*scale.Variant).Fields.Values[0])

	event, _ := second.Get("event")
	transfer, ok := event.(*scale.Variant).Inner()
	require.True(t, ok)
	require.Equal(t, "Transfer", transfer.Name)
	amount, _ := transfer.Fields.Get("amount")
	require.Equal(t, big.NewInt(42), amount)
	n, ok := scale.AsUint64(amount)
	require.True(t, ok)
	require.EqualValues(t, 42, n)

	who, _ := transfer.Fields.Get("from")
	b, ok := scale.AsBytes(who)
	require.True(t, ok)
	require.Equal(t, from[:], b)

	third := records[2].(*scale.Composite)
	phase, _ = third.Get("phase")
	require.Equal(t, "Finalization", phase.(*scale.Variant).Name)
}

func TestDecodeOption(t *testing.T) {
	b := &scaletest.Builder{}
	u32 := b.Primitive(scale.PrimU32)
	opt := b.Option(u32)
	r := b.Registry()

	v, err := r.DecodeBytes([]byte{0}, opt)
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = r.DecodeBytes([]byte{1, 7, 0, 0, 0}, opt)
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	_, err = r.DecodeBytes([]byte{2}, opt)
	require.Error(t, err)
}

func TestDecodeTrailingBytes(t *testing.T) {
	b := &scaletest.Builder{}
	u8 := b.Primitive(scale.PrimU8)
	r := b.Registry()

	_, err := r.DecodeBytes([]byte{1, 2}, u8)
	require.ErrorContains(t, err, "trailing")

	_, err = r.DecodeBytes([]byte{1}, 99)
	require.ErrorContains(t, err, "not in registry")
}

func TestDecodeSignedPrimitives(t *testing.T) {
	b := &scaletest.Builder{}
	i8 := b.Primitive(scale.PrimI8)
	i128 := b.Primitive(scale.PrimI128)
	tuple := b.Tuple(i8, i128)
	r := b.Registry()

	raw := append([]byte{0xfe}, make([]byte, 16)...)
	raw[1] = 5
	v, err := r.DecodeBytes(raw, tuple)
	require.NoError(t, err)
	require.Equal(t, []any{int64(-2), big.NewInt(5)}, v)
}

func TestCompositeMarshalUnnamed(t *testing.T) {
	out, err := json.Marshal(&scale.Composite{Values: []any{uint64(1), "a"}})
	require.NoError(t, err)
	require.JSONEq(t, `[1, "a"]`, string(out))

	out, err = json.Marshal(&scale.Variant{Name: "Finalization"})
	require.NoError(t, err)
	require.JSONEq(t, `{"name": "Finalization", "values": []}`, string(out))
}
